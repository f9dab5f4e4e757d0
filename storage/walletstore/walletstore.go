// Package walletstore implements the shared wallet/asset authority (C7):
// transactional debit/credit between user wallets and asset-ownership
// reassignment, backed by jinzhu/gorm so the app server's confirmation
// consumer can select either SQLite or MySQL (github.com/go-sql-driver/mysql)
// as the underlying engine, matching original_source/blockchain/db_init.py's
// shared `database.sqlite3` users/assets tables.
package walletstore

import (
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"

	"github.com/aurex-chain/aurex/log"
)

var logger = log.NewModuleLogger(log.Wallet)

// User mirrors db_init.py's shared `users` table, trimmed to the columns
// the confirmation consumer and BUY-path balance checks actually read.
type User struct {
	Username        string `gorm:"primary_key"`
	WalletBalance   float64
	WalletUpdatedAt time.Time
}

// Asset mirrors db_init.py's shared `assets` table.
type Asset struct {
	AssetID  string `gorm:"primary_key;column:asset_id"`
	Owner    string
	Price    float64
	IsListed bool
}

func (User) TableName() string  { return "users" }
func (Asset) TableName() string { return "assets" }

// Store is the shared wallet/asset authority, exposed only to the
// app-server pipeline per §3.
type Store struct {
	db *gorm.DB
}

// Open opens (and auto-migrates) the shared store using the named gorm
// dialect ("sqlite3" or "mysql") and DSN.
func Open(dialect, dsn string) (*Store, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "walletstore: open")
	}
	db.SingularTable(true)
	if err := db.AutoMigrate(&User{}, &Asset{}).Error; err != nil {
		db.Close()
		return nil, errors.Wrap(err, "walletstore: automigrate")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ErrInsufficientBalance is returned by Transfer when the sender's wallet
// cannot cover the amount.
var ErrInsufficientBalance = errors.New("Insufficient balance")

// Transfer moves amount from one wallet to another inside a single
// transaction (I5, §4.7): guard amount > 0, read both balances, reject if
// the sender can't cover it, write both balances and their updated_at
// stamps, commit. On MySQL both rows are read FOR UPDATE; SQLite rejects
// that clause, so there the rows are read plainly and the database's own
// write lock serializes the two updates. Any failure rolls back;
// ErrInsufficientBalance is returned as is, other errors are wrapped with
// context.
func (s *Store) Transfer(from, to string, amount float64) error {
	if amount <= 0 {
		return errors.New("walletstore: amount must be positive")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "walletstore: begin")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	locked := tx
	if s.db.Dialect().GetName() != "sqlite3" {
		locked = tx.Set("gorm:query_option", "FOR UPDATE")
	}

	var sender, recipient User
	if err := locked.Where("username = ?", from).First(&sender).Error; err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "walletstore: load sender %s", from)
	}
	if err := locked.Where("username = ?", to).First(&recipient).Error; err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "walletstore: load recipient %s", to)
	}

	if sender.WalletBalance < amount {
		tx.Rollback()
		return ErrInsufficientBalance
	}

	now := time.Now().UTC()
	if err := tx.Model(&sender).Updates(map[string]interface{}{
		"wallet_balance":    sender.WalletBalance - amount,
		"wallet_updated_at": now,
	}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "walletstore: debit")
	}
	if err := tx.Model(&recipient).Updates(map[string]interface{}{
		"wallet_balance":    recipient.WalletBalance + amount,
		"wallet_updated_at": now,
	}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "walletstore: credit")
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "walletstore: commit")
	}
	logger.Info("transfer applied", "from", from, "to", to, "amount", amount)
	return nil
}

// UpdateAssetOwner reassigns ownership and de-lists the asset in one UPDATE,
// reporting whether a row actually changed.
func (s *Store) UpdateAssetOwner(assetID, newOwner string) (bool, error) {
	res := s.db.Model(&Asset{}).Where("asset_id = ?", assetID).Updates(map[string]interface{}{
		"owner":     newOwner,
		"is_listed": false,
	})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "walletstore: update asset owner")
	}
	return res.RowsAffected > 0, nil
}

// Balance returns a user's current wallet balance, used by the BUY handler
// pre-check (§4.6 step 4).
func (s *Store) Balance(username string) (float64, error) {
	var u User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		return 0, errors.Wrapf(err, "walletstore: balance for %s", username)
	}
	return u.WalletBalance, nil
}

// AssetByID looks up one asset row for the BUY handler's authorization
// checks (missing, unlisted, owned-by-buyer).
func (s *Store) AssetByID(assetID string) (*Asset, error) {
	var a Asset
	err := s.db.Where("asset_id = ?", assetID).First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "walletstore: asset %s", assetID)
	}
	return &a, nil
}
