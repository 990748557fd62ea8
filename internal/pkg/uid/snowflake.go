package uid

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates roughly time-ordered 63-bit ids.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for nodeID, which must fit in 10 bits.
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("uid: snowflake node %d: %w", nodeID, err)
	}

	return &Snowflake{node: node}, nil
}

// Generate returns the next id.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
