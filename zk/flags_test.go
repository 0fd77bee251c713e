package zk_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/zk"
)

const (
	flagUser  = "5f927395213ee6b95de97bddcb1b2b1c0f19844f"
	otherUser = "0c373a21f9b03e92f3a223ef53a9a6a6b46e9f9e"
)

var flagSiteKey = []byte("site-key-for-flag-tests-32-bytes")

func flagInputs(sizeX, sizeY uint64, user string, siteKey []byte, depth uint64) []*big.Int {
	f := zk.ExpectedFlags(sizeX, sizeY, user, siteKey, depth)
	in := make([]*big.Int, zk.InputLen)
	in[zk.InputBlockHash] = big.NewInt(1)
	in[zk.InputBlockType] = big.NewInt(int64(core.BlockDirt))
	copy(in[zk.InputFlagSizeX:], f[:])
	return in
}

func TestExpectedFlagsDeterministic(t *testing.T) {
	a := zk.ExpectedFlags(8, 8, flagUser, flagSiteKey, 3)
	b := zk.ExpectedFlags(8, 8, flagUser, flagSiteKey, 3)
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			t.Fatalf("flag %d not deterministic", i)
		}
	}
}

// TestExpectedFlagsBindContext: the hash-derived flags must change when the
// user or the depth changes, otherwise proofs would be replayable across
// contexts.
func TestExpectedFlagsBindContext(t *testing.T) {
	base := zk.ExpectedFlags(8, 8, flagUser, flagSiteKey, 3)

	byUser := zk.ExpectedFlags(8, 8, otherUser, flagSiteKey, 3)
	if base[2].Cmp(byUser[2]) == 0 {
		t.Fatal("user flag identical across users")
	}
	if base[3].Cmp(byUser[3]) != 0 {
		t.Fatal("depth flag should not depend on user")
	}

	byDepth := zk.ExpectedFlags(8, 8, flagUser, flagSiteKey, 4)
	if base[2].Cmp(byDepth[2]) == 0 || base[3].Cmp(byDepth[3]) == 0 {
		t.Fatal("hash flags identical across depths")
	}
}

func TestCheckFlags(t *testing.T) {
	in := flagInputs(8, 8, flagUser, flagSiteKey, 2)
	if err := zk.CheckFlags(in, 8, 8, flagUser, flagSiteKey, 2); err != nil {
		t.Fatalf("consistent flags rejected: %v", err)
	}

	cases := []struct {
		name  string
		check func() error
	}{
		{"wrong depth", func() error {
			return zk.CheckFlags(in, 8, 8, flagUser, flagSiteKey, 3)
		}},
		{"wrong user", func() error {
			return zk.CheckFlags(in, 8, 8, otherUser, flagSiteKey, 2)
		}},
		{"wrong map size", func() error {
			return zk.CheckFlags(in, 9, 8, flagUser, flagSiteKey, 2)
		}},
	}
	for _, tc := range cases {
		if err := tc.check(); !errors.Is(err, core.ErrFlagsMismatch) {
			t.Errorf("%s: got %v, want ErrFlagsMismatch", tc.name, err)
		}
	}

	short := in[:zk.InputLen-1]
	if err := zk.CheckFlags(short, 8, 8, flagUser, flagSiteKey, 2); !errors.Is(err, core.ErrBadBatchShape) {
		t.Errorf("short vector: got %v, want ErrBadBatchShape", err)
	}
}
