package coupon

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/speps/go-hashids/v2"
)

// Alphabet leaves out characters that are easy to misread (0/O, 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const minLength = 10

// Generator produces coupon codes. Callers still check codes against storage: the
// code space is large, not infinite.
type Generator interface {
	Generate() (string, error)
}

// HashIDGenerator encodes a snowflake id with a salted hashid.
type HashIDGenerator struct {
	node   *snowflake.Node
	hash   *hashids.HashID
	prefix string
}

func NewHashIDGenerator(salt, prefix string, nodeID int64) (*HashIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}

	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	hd.Alphabet = Alphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("hashids: %w", err)
	}

	return &HashIDGenerator{node: node, hash: h, prefix: prefix}, nil
}

func (g *HashIDGenerator) Generate() (string, error) {
	code, err := g.hash.EncodeInt64([]int64{g.node.Generate().Int64()})
	if err != nil {
		return "", fmt.Errorf("encode coupon code: %w", err)
	}
	return g.prefix + code, nil
}
