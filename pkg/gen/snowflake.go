package gen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type SnowflakeNode struct {
	node *snowflake.Node
}

// NewSnowflakeNode returns a generator for nodeID, which must be unique per
// running process (0..1023).
func NewSnowflakeNode(nodeID int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeNode{node: node}, nil
}

func (s *SnowflakeNode) GenerateID() snowflake.ID {
	return s.node.Generate()
}
