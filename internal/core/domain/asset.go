package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetClass tells what kind of value an asset represents and how it should
// be displayed.
type AssetClass string

const (
	AssetClassFiat            AssetClass = "fiat"
	AssetClassCryptocurrency  AssetClass = "cryptocurrency"
	AssetClassToken           AssetClass = "token"
	AssetClassTokenizedShares AssetClass = "tokenized_shares"
	AssetClassEther           AssetClass = "ether"
)

// AssetState is the global visibility of an asset in the system.
type AssetState string

const (
	// AssetStatePublic means asset information and ownership are publicly known.
	AssetStatePublic AssetState = "public"
	// AssetStateShared means only asset holders have access to the information.
	AssetStateShared AssetState = "shared"
	// AssetStateOwner means only the asset owner sees the information.
	AssetStateOwner AssetState = "owner"
	// AssetStateFrozen blocks all deposits of the asset.
	AssetStateFrozen AssetState = "frozen"
)

// AssetNetwork is an isolation domain for assets and addresses, one per
// chain or test environment.
type AssetNetwork struct {
	Id        string
	Name      string
	CreatedAt int64
}

// NewAssetNetwork returns a network with a new id.
func NewAssetNetwork(name string) *AssetNetwork {
	return &AssetNetwork{
		Id:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().Unix(),
	}
}

// Asset is a fungible value type scoped to a network. ExternalId is the
// on-chain contract identity and stays empty until the asset is anchored to
// the network.
type Asset struct {
	Id          string
	NetworkId   string
	Name        string
	Symbol      string
	Description string
	ExternalId  []byte
	Supply      decimal.Decimal
	Class       AssetClass
	State       AssetState
	CreatedAt   int64
	UpdatedAt   int64
	ArchivedAt  int64
}

// NewAsset returns a public asset with a new id, bound to the given network.
func NewAsset(
	networkId, name, symbol string, supply decimal.Decimal, class AssetClass,
) *Asset {
	now := time.Now().Unix()
	return &Asset{
		Id:        uuid.New().String(),
		NetworkId: networkId,
		Name:      name,
		Symbol:    symbol,
		Supply:    supply,
		Class:     class,
		State:     AssetStatePublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EnsureNotFrozen returns ErrAssetFrozen if deposits of the asset are
// currently blocked. Called by the ledger on every balance-increasing
// mutation.
func (a *Asset) EnsureNotFrozen() error {
	if a.State == AssetStateFrozen {
		return ErrAssetFrozen
	}
	return nil
}

// IsFrozen returns whether the asset is in the frozen state.
func (a *Asset) IsFrozen() bool {
	return a.State == AssetStateFrozen
}

// Archive puts the asset out of public listings while keeping it reachable.
func (a *Asset) Archive(at int64) {
	a.ArchivedAt = at
	a.UpdatedAt = at
}

// IsPubliclyListed returns whether the asset should appear in public
// listings. Archived or restricted assets can still be accessed directly.
func (a *Asset) IsPubliclyListed() bool {
	return a.State == AssetStatePublic && a.ArchivedAt == 0
}
