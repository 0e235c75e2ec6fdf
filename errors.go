package mst

import (
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/pkg/errors"
)

func errNotSerializable(h util.Uint256) error {
	return errors.Errorf("batch %s does not support binary encoding", h)
}
