package ir

import (
	"github.com/pkg/errors"

	"github.com/akhildatla/dstree/pkg/config"
	"github.com/akhildatla/dstree/pkg/exec"
)

// Build lowers the node to its operator chain. ops[0] is the chain head
// (closest to the consumer); upstream children attach below the last op.
// The result is never empty on success.
func (n *Node) Build(cfg *config.Config) ([]*exec.Operator, error) {
	if n.params == nil && n.kind != KindConcat && n.kind != KindZip {
		return nil, errors.Wrapf(ErrInvalidParams, "build %s: no parameters", n.kind)
	}
	cfg = config.OrDefault(cfg)
	workers := cfg.NumParallelWorkers
	if n.numWorkers > 0 {
		workers = n.numWorkers
	}
	newOp := func(kind exec.OpKind, numWorkers int, params exec.Params) *exec.Operator {
		return &exec.Operator{
			Kind:          kind,
			NumWorkers:    numWorkers,
			ConnectorSize: cfg.OpConnectorSize,
			Params:        params,
		}
	}

	var ops []*exec.Operator
	switch n.kind {
	case KindRandomData:
		p := cloneParams(n.params).(*exec.RandomDataParams)
		if p.Seed == 0 {
			p.Seed = cfg.Seed
		}
		ops = append(ops, newOp(exec.OpRandomData, workers, p))

	case KindCSV, KindJSON, KindParquet:
		p := n.params.(*FileSourceParams)
		kind := map[Kind]exec.OpKind{KindCSV: exec.OpCSV, KindJSON: exec.OpJSON, KindParquet: exec.OpParquet}[n.kind]
		if p.GlobalShuffle {
			ops = append(ops, newOp(exec.OpShuffle, 1, &exec.ShuffleParams{
				BufferSize:         cfg.FileShuffleBuffer,
				Seed:               cfg.Seed,
				ReshuffleEachEpoch: true,
			}))
		}
		fp := p.FileParams
		ops = append(ops, newOp(kind, workers, &fp))

	case KindFrame:
		ops = append(ops, newOp(exec.OpFrame, 1, cloneParams(n.params).(*exec.FrameParams)))

	case KindRepeat:
		ops = append(ops, newOp(exec.OpRepeat, 0, cloneParams(n.params).(*exec.RepeatParams)))

	case KindProject:
		ops = append(ops, newOp(exec.OpProject, 0, cloneParams(n.params).(*exec.ProjectParams)))

	case KindRename:
		ops = append(ops, newOp(exec.OpRename, 0, cloneParams(n.params).(*exec.RenameParams)))

	case KindShuffle:
		p := cloneParams(n.params).(*exec.ShuffleParams)
		if p.Seed == 0 {
			p.Seed = cfg.Seed
		}
		ops = append(ops, newOp(exec.OpShuffle, 1, p))

	case KindBatch:
		ops = append(ops, newOp(exec.OpBatch, workers, cloneParams(n.params).(*exec.BatchParams)))

	case KindMap:
		p := cloneParams(n.params).(*MapParams)
		if len(p.ProjectColumns) > 0 {
			ops = append(ops, newOp(exec.OpProject, 0, &exec.ProjectParams{Columns: p.ProjectColumns}))
		}
		mp := p.MapParams
		ops = append(ops, newOp(exec.OpMap, workers, &mp))

	case KindFilter:
		ops = append(ops, newOp(exec.OpFilter, workers, cloneParams(n.params).(*exec.FilterParams)))

	case KindSkip:
		ops = append(ops, newOp(exec.OpSkip, 0, cloneParams(n.params).(*exec.CountParams)))

	case KindTake:
		ops = append(ops, newOp(exec.OpTake, 0, cloneParams(n.params).(*exec.CountParams)))

	case KindConcat:
		ops = append(ops, newOp(exec.OpConcat, 0, nil))

	case KindZip:
		ops = append(ops, newOp(exec.OpZip, 0, nil))

	default:
		return nil, errors.Wrapf(ErrUnknownKind, "build %s", n.kind)
	}

	if n.cache != nil {
		c := *n.cache
		ops[0].Cache = &c
	}
	return ops, nil
}
