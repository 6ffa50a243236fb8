package mint_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/extsim"
	"github.com/DragonX2024888/DragonX/internal/mint"
	"github.com/DragonX2024888/DragonX/internal/staking"
	"github.com/DragonX2024888/DragonX/internal/token"
)

type allocatorFixture struct {
	owner   chain.Address
	custody chain.Address
	native  *chain.NativeLedger
	titan   *extsim.StakingSim
	dragon  *token.Dragon
	vault   *staking.Vault
	alloc   *mint.Allocator
}

func newAllocatorFixture() *allocatorFixture {
	clock := clockwork.NewFakeClockAt(begin)
	native := chain.NewNativeLedger()
	titan := extsim.NewStakingSim(clock, native)
	owner := chain.AddressOf("test:owner")
	custody := chain.AddressOf("test:custody")
	dragon := token.NewDragon(chain.AddressOf("test:token"), custody, chain.AddressOf("test:burner"))
	vault := staking.NewVault()
	return &allocatorFixture{
		owner: owner, custody: custody, native: native,
		titan: titan, dragon: dragon, vault: vault,
		alloc: mint.NewAllocator(owner, custody, dragon, titan, native, vault),
	}
}

func TestAllocator_ClaimDragonShare(t *testing.T) {
	f := newAllocatorFixture()
	if err := f.dragon.Mint(f.custody, f.custody, uint256.NewInt(800)); err != nil {
		t.Fatalf("seed custody: %v", err)
	}

	got, err := f.alloc.Claim(f.owner, f.dragon.Address())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !got.Eq(uint256.NewInt(800)) {
		t.Errorf("claimed = %s, want 800", got.Dec())
	}
	if bal := f.dragon.BalanceOf(f.owner); !bal.Eq(uint256.NewInt(800)) {
		t.Errorf("owner balance = %s, want 800", bal.Dec())
	}
}

func TestAllocator_ClaimAssetShareExcludesVault(t *testing.T) {
	f := newAllocatorFixture()
	// Custody holds 10000 of the asset, 9200 of which belong to the
	// vault; only the 800 skim is claimable.
	f.titan.Fund(f.custody, uint256.NewInt(10_000))
	f.vault.Add(uint256.NewInt(9200))

	got, err := f.alloc.Claim(f.owner, f.titan.Address())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !got.Eq(uint256.NewInt(800)) {
		t.Errorf("claimed = %s, want 800", got.Dec())
	}
	if bal := f.titan.BalanceOf(f.custody); !bal.Eq(uint256.NewInt(9200)) {
		t.Errorf("custody should retain the vault's 9200, has %s", bal.Dec())
	}
}

func TestAllocator_ClaimNative(t *testing.T) {
	f := newAllocatorFixture()
	f.native.Credit(f.custody, uint256.NewInt(55))

	got, err := f.alloc.Claim(f.owner, chain.ZeroAddress)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !got.Eq(uint256.NewInt(55)) {
		t.Errorf("claimed = %s, want 55", got.Dec())
	}
}

func TestAllocator_ClaimEmpty(t *testing.T) {
	f := newAllocatorFixture()
	_, err := f.alloc.Claim(f.owner, f.dragon.Address())
	if err == nil || err.Error() != "no balance" {
		t.Errorf("got %v, want %q", err, "no balance")
	}
}

func TestAllocator_ClaimOwnerOnly(t *testing.T) {
	f := newAllocatorFixture()
	_, err := f.alloc.Claim(chain.AddressOf("test:mallory"), f.dragon.Address())
	if !errors.Is(err, chain.ErrNotOwner) {
		t.Errorf("got %v, want ErrNotOwner", err)
	}
}

func TestAllocator_ClaimUnknownSelector(t *testing.T) {
	f := newAllocatorFixture()
	_, err := f.alloc.Claim(f.owner, chain.AddressOf("test:random-token"))
	if !errors.Is(err, mint.ErrUnsupportedToken) {
		t.Errorf("got %v, want ErrUnsupportedToken", err)
	}
}
