package inmem

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	operator   = common.HexToAddress("0x00000000000000000000000000000000000000E1")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	token      = common.HexToAddress("0x00000000000000000000000000000000000000D1")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

func TestNFTLedgerMint(t *testing.T) {
	l := NewNFTLedger(operator)
	ctx := context.Background()

	first := l.Mint(collection, alice)
	second := l.Mint(collection, bob)
	if first.String() != "1" || second.String() != "2" {
		t.Errorf("token ids = %s, %s, want 1, 2", first, second)
	}

	// Ids are sequential per collection.
	other := common.HexToAddress("0x00000000000000000000000000000000000000C2")
	if id := l.Mint(other, alice); id.String() != "1" {
		t.Errorf("first id in new collection = %s, want 1", id)
	}

	owner, err := l.OwnerOf(ctx, collection, first)
	if err != nil {
		t.Fatalf("OwnerOf() error = %v", err)
	}
	if owner != alice {
		t.Errorf("owner = %s, want alice", owner.Hex())
	}

	if _, err := l.OwnerOf(ctx, collection, big.NewInt(99)); err == nil {
		t.Error("OwnerOf() for unminted token succeeded")
	}
}

func TestNFTLedgerTransferFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("requires holder approval", func(t *testing.T) {
		l := NewNFTLedger(operator)
		id := l.Mint(collection, alice)

		if err := l.TransferFrom(ctx, collection, alice, bob, id); err == nil {
			t.Fatal("transfer without approval succeeded")
		}

		l.SetApprovalForAll(collection, alice, operator, true)
		if err := l.TransferFrom(ctx, collection, alice, bob, id); err != nil {
			t.Fatalf("TransferFrom() error = %v", err)
		}
		owner, _ := l.OwnerOf(ctx, collection, id)
		if owner != bob {
			t.Errorf("owner = %s, want bob", owner.Hex())
		}
	})

	t.Run("rejects wrong from", func(t *testing.T) {
		l := NewNFTLedger(operator)
		id := l.Mint(collection, alice)
		l.SetApprovalForAll(collection, alice, operator, true)

		if err := l.TransferFrom(ctx, collection, bob, alice, id); err == nil {
			t.Error("transfer from non-holder succeeded")
		}
	})

	t.Run("approval can be revoked", func(t *testing.T) {
		l := NewNFTLedger(operator)
		id := l.Mint(collection, alice)
		l.SetApprovalForAll(collection, alice, operator, true)
		l.SetApprovalForAll(collection, alice, operator, false)

		if err := l.TransferFrom(ctx, collection, alice, bob, id); err == nil {
			t.Error("transfer after revoked approval succeeded")
		}
	})
}

func TestERC20LedgerTransferFrom(t *testing.T) {
	ctx := context.Background()
	hundred := big.NewInt(100)

	t.Run("third-party pull spends allowance", func(t *testing.T) {
		l := NewERC20Ledger(operator)
		l.Mint(token, alice, hundred)
		l.Approve(token, alice, operator, big.NewInt(60))

		if err := l.TransferFrom(ctx, token, alice, bob, big.NewInt(40)); err != nil {
			t.Fatalf("TransferFrom() error = %v", err)
		}
		if got := l.Allowance(token, alice, operator); got.String() != "20" {
			t.Errorf("remaining allowance = %s, want 20", got)
		}

		if err := l.TransferFrom(ctx, token, alice, bob, big.NewInt(40)); err == nil {
			t.Error("pull beyond allowance succeeded")
		}
	})

	t.Run("operator transfers need no allowance", func(t *testing.T) {
		l := NewERC20Ledger(operator)
		l.Mint(token, operator, hundred)

		if err := l.TransferFrom(ctx, token, operator, bob, hundred); err != nil {
			t.Fatalf("TransferFrom() error = %v", err)
		}
		bal, _ := l.BalanceOf(ctx, token, bob)
		if bal.String() != "100" {
			t.Errorf("bob balance = %s, want 100", bal)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		l := NewERC20Ledger(operator)
		l.Mint(token, alice, big.NewInt(10))
		l.Approve(token, alice, operator, hundred)

		if err := l.TransferFrom(ctx, token, alice, bob, hundred); err == nil {
			t.Error("transfer beyond balance succeeded")
		}
	})

	t.Run("zero amount is a no-op", func(t *testing.T) {
		l := NewERC20Ledger(operator)
		if err := l.TransferFrom(ctx, token, alice, bob, nil); err != nil {
			t.Errorf("nil amount: error = %v", err)
		}
		if err := l.TransferFrom(ctx, token, alice, bob, new(big.Int)); err != nil {
			t.Errorf("zero amount: error = %v", err)
		}
	})
}

func TestNativeBalances(t *testing.T) {
	ctx := context.Background()
	b := NewNativeBalances()

	b.Fund(alice, big.NewInt(100))
	if got := b.BalanceOf(alice); got.String() != "100" {
		t.Fatalf("balance = %s, want 100", got)
	}

	if err := b.Withdraw(ctx, alice, big.NewInt(60)); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if err := b.Withdraw(ctx, alice, big.NewInt(60)); err == nil {
		t.Error("overdraft succeeded")
	}

	if err := b.Deposit(ctx, bob, big.NewInt(60)); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if got := b.BalanceOf(bob); got.String() != "60" {
		t.Errorf("bob balance = %s, want 60", got)
	}
	if got := b.BalanceOf(alice); got.String() != "40" {
		t.Errorf("alice balance = %s, want 40", got)
	}
}
