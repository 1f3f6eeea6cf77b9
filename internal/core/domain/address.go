package domain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

const (
	// AddressValueSize is the fixed width of an external network address.
	AddressValueSize = 20
	// TxIdSize is the fixed width of an external transaction id.
	TxIdSize = 32
	// OpIdSize is the width of a txid plus log-index dedup key for incoming
	// transactions.
	OpIdSize = 34
)

// Address is one external-network address. Value stays nil until the
// creation operation completes and the network assigns it. Only one address
// object per (network, value) pair may exist.
type Address struct {
	Id        string
	NetworkId string
	Value     []byte
	CreatedAt int64
}

// NewAddress returns an address with no network value assigned yet.
func NewAddress(networkId string) *Address {
	return &Address{
		Id:        uuid.New().String(),
		NetworkId: networkId,
		CreatedAt: time.Now().Unix(),
	}
}

// IsAssigned returns whether the network has populated the address value.
func (a *Address) IsAssigned() bool {
	return len(a.Value) > 0
}

// AddressAccount binds one ledger account to an address for one asset.
// There is at most one per (address, asset) pair.
type AddressAccount struct {
	Id        string
	AddressId string
	AccountId string
	AssetId   string
	CreatedAt int64
}

// NewAddressAccount returns an address account binding.
func NewAddressAccount(addressId, accountId, assetId string) *AddressAccount {
	return &AddressAccount{
		Id:        uuid.New().String(),
		AddressId: addressId,
		AccountId: accountId,
		AssetId:   assetId,
		CreatedAt: time.Now().Unix(),
	}
}

// Key returns the storage key enforcing one account per (address, asset).
func (a AddressAccount) Key() string {
	buf := []byte(fmt.Sprintf("%s:%s", a.AddressId, a.AssetId))
	return hex.EncodeToString(btcutil.Hash160(buf))
}

// NewOpId builds the 34-byte dedup key for an incoming transaction from its
// txid and log index. One transaction can carry multiple asset movements,
// each log entry maps to its own operation.
func NewOpId(txid []byte, logIndex uint16) ([]byte, error) {
	if err := ValidateTxId(txid); err != nil {
		return nil, err
	}
	opid := make([]byte, OpIdSize)
	copy(opid, txid)
	binary.BigEndian.PutUint16(opid[TxIdSize:], logIndex)
	return opid, nil
}

// ValidateAddressValue checks the fixed 20-byte width of an external address.
func ValidateAddressValue(value []byte) error {
	if len(value) != AddressValueSize {
		return fmt.Errorf("external address must be %d bytes, got %d", AddressValueSize, len(value))
	}
	return nil
}

// ValidateTxId checks the fixed 32-byte width of a transaction id.
func ValidateTxId(txid []byte) error {
	if len(txid) != TxIdSize {
		return fmt.Errorf("transaction id must be %d bytes, got %d", TxIdSize, len(txid))
	}
	return nil
}
