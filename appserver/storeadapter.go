package appserver

import "github.com/aurex-chain/aurex/storage/walletstore"

// WalletStoreAdapter adapts *walletstore.Store to the Pipeline's narrow
// WalletStore interface so this package never imports gorm types directly.
type WalletStoreAdapter struct {
	*walletstore.Store
}

// NewWalletStoreAdapter wraps a concrete wallet store for pipeline use.
func NewWalletStoreAdapter(s *walletstore.Store) *WalletStoreAdapter {
	return &WalletStoreAdapter{Store: s}
}

// AssetByID narrows walletstore.Asset to the fields Pipeline reads.
func (a *WalletStoreAdapter) AssetByID(assetID string) (*walletAsset, error) {
	asset, err := a.Store.AssetByID(assetID)
	if err != nil || asset == nil {
		return nil, err
	}
	return &walletAsset{
		AssetID:  asset.AssetID,
		Owner:    asset.Owner,
		IsListed: asset.IsListed,
		Price:    asset.Price,
	}, nil
}
