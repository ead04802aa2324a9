package mem

import (
	"context"
	"testing"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/testutil"
)

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New())
}

func TestAllHashes(t *testing.T) {
	testutil.AllHashes(context.Background(), t, func() hashio.Backend { return New() })
}
