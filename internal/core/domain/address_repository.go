package domain

import "context"

// AddressRepository is the abstraction for any kind of database intended to
// persist external-network addresses and their per-asset accounts.
type AddressRepository interface {
	// AddAddress persists a new address.
	AddAddress(ctx context.Context, address *Address) error
	// GetAddress returns the address with the given id, or ErrAddressNotFound.
	GetAddress(ctx context.Context, addressId string) (*Address, error)
	// GetAddressByValue returns the network's address with the given
	// external value, or ErrAddressNotFound.
	GetAddressByValue(ctx context.Context, networkId string, value []byte) (*Address, error)
	// ListAddressesForNetwork returns all addresses of a network.
	ListAddressesForNetwork(ctx context.Context, networkId string) ([]Address, error)
	// UpdateAddress commits multiple changes to the same address in a
	// transactional way.
	UpdateAddress(
		ctx context.Context,
		addressId string,
		updateFn func(a *Address) (*Address, error),
	) error

	// AddAddressAccount persists a new address account binding. It returns
	// ErrMultipleAssetAccountsPerAddress if the address already holds an
	// account for the asset.
	AddAddressAccount(ctx context.Context, account *AddressAccount) error
	// GetAddressAccount returns the address's account for the given asset,
	// or ErrAddressAccountNotFound.
	GetAddressAccount(ctx context.Context, addressId, assetId string) (*AddressAccount, error)
	// ListAccountsForAddress returns all asset accounts under an address.
	ListAccountsForAddress(ctx context.Context, addressId string) ([]AddressAccount, error)
}
