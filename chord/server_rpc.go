package chord

import (
	"context"

	"go.miragespace.co/chord/spec/chord"
	rpcSpec "go.miragespace.co/chord/spec/rpc"

	"go.uber.org/zap"
)

// Server answers NodeService calls on behalf of every node in Registry
type Server struct {
	Logger   *zap.Logger
	Registry *Registry
}

var _ rpcSpec.NodeServiceServer = (*Server)(nil)

func (s *Server) lookupNode(str string) (*LocalNode, error) {
	id, err := rpcSpec.ParseID(str)
	if err != nil {
		return nil, err
	}
	node, ok := s.Registry.Get(id)
	if !ok {
		return nil, chord.NodeNotFound(id)
	}
	return node, nil
}

func (s *Server) Ping(ctx context.Context, req *rpcSpec.PingRequest) (*rpcSpec.PingResponse, error) {
	node, err := s.lookupNode(req.GetNodeId())
	if err != nil {
		return nil, rpcSpec.WrapError(err)
	}
	if err := node.Ping(ctx); err != nil {
		return nil, rpcSpec.WrapError(err)
	}
	return &rpcSpec.PingResponse{}, nil
}

func (s *Server) FindSuccessor(ctx context.Context, req *rpcSpec.FindSuccessorRequest) (*rpcSpec.FindSuccessorResponse, error) {
	node, err := s.lookupNode(req.GetNodeId())
	if err != nil {
		return nil, rpcSpec.WrapError(err)
	}
	key, err := rpcSpec.ParseID(req.GetId())
	if err != nil {
		return nil, rpcSpec.WrapError(err)
	}

	result, err := node.FindSuccessor(ctx, key)
	if err != nil {
		s.Logger.Debug("FindSuccessor failed",
			zap.Uint64("node", node.ID()),
			zap.Uint64("key", key),
			zap.Error(err),
		)
		return nil, rpcSpec.WrapError(err)
	}

	resp := &rpcSpec.FindSuccessorResponse{}
	switch result.Kind {
	case chord.Successor:
		resp.Successor = rpcSpec.PeerToInfo(result.Node)
	case chord.ClosestPrecedingNode:
		resp.ClosestPrecedingNode = rpcSpec.PeerToInfo(result.Node)
	default:
		return nil, rpcSpec.WrapError(chord.InvalidResponse(node.ID()))
	}
	return resp, nil
}

func (s *Server) GetPredecessor(ctx context.Context, req *rpcSpec.GetPredecessorRequest) (*rpcSpec.GetPredecessorResponse, error) {
	node, err := s.lookupNode(req.GetNodeId())
	if err != nil {
		return nil, rpcSpec.WrapError(err)
	}

	pre, err := node.GetPredecessor(ctx)
	if err != nil {
		s.Logger.Debug("GetPredecessor failed",
			zap.Uint64("node", node.ID()),
			zap.Error(err),
		)
		return nil, rpcSpec.WrapError(err)
	}
	return &rpcSpec.GetPredecessorResponse{
		Node: rpcSpec.PeerToInfo(pre),
	}, nil
}
