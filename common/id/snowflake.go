package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Node IDs are fixed per binary so two processes never mint the same
// ID: the API server owns ServerNode, the pipeline worker WorkerNode.
const (
	ServerNode int64 = 1
	WorkerNode int64 = 2
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init creates the process-wide snowflake node. Only the first call
// has any effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
		if err != nil {
			err = fmt.Errorf("creating snowflake node %d: %w", nodeID, err)
		}
	})
	return err
}

// New returns a time-ordered int64 unique across both binaries.
// Init must have run first.
func New() int64 {
	return node.Generate().Int64()
}
