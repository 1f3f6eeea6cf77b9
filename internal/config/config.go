package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// QueueIntervalKey is the interval in milliseconds between two runs of
	// the waiting operation queue
	QueueIntervalKey = "QUEUE_INTERVAL"
	// ConfirmationIntervalKey is the interval in milliseconds between two
	// confirmation reconciliation sweeps
	ConfirmationIntervalKey = "CONFIRMATION_INTERVAL"
	// ApprovalTimeoutKey is the duration in seconds before a pending manual
	// withdraw approval times out
	ApprovalTimeoutKey = "APPROVAL_TIMEOUT"
	// RequiredConfirmationsKey is the default block depth an operation must
	// sink below the network head before it is considered settled
	RequiredConfirmationsKey = "REQUIRED_CONFIRMATIONS"
	// NetworkNameKey is the name of the network the daemon operates on
	NetworkNameKey = "NETWORK_NAME"
	// EnableProfilerKey enables printing of memory and goroutine statistics
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey is the interval in seconds between two prints of
	// runtime statistics
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("walletd", false)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("WALLETD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(QueueIntervalKey, 5000)
	vip.SetDefault(ConfirmationIntervalKey, 15000)
	vip.SetDefault(ApprovalTimeoutKey, 4*3600)
	vip.SetDefault(RequiredConfirmationsKey, 1)
	vip.SetDefault(NetworkNameKey, "testnet")
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600)

	if err := validate(); err != nil {
		log.WithError(err).Panic("error while validating config")
	}

	if err := initDatadir(); err != nil {
		log.WithError(err).Panic("error while creating datadir")
	}
}

//GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

//GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

//GetBool ...
func GetBool(key string) bool {
	return vip.GetBool(key)
}

//GetUint64 ...
func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

//GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

// GetDatadir returns the data directory of the daemon
func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory holding the badger stores
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	if GetInt(QueueIntervalKey) <= 0 {
		return fmt.Errorf("queue interval must be positive")
	}
	if GetInt(ConfirmationIntervalKey) <= 0 {
		return fmt.Errorf("confirmation interval must be positive")
	}
	if GetString(NetworkNameKey) == "" {
		return fmt.Errorf("network name must not be null")
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(datadir); err != nil {
		return err
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
