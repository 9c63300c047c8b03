package general

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const DefaultEnvFile = ".env"

type General struct {
	RpcEndpoint string
	Chain       uint64

	//database credentials
	Host     string
	Port     string
	User     string
	Password string
	DBName   string

	LogLevel    string
	MetricsAddr string

	//default watch list
	PriceTokens []common.Address
}

// NewGeneral loads envFile into the environment and reads the configuration
// from it. A missing default .env is fine, a missing explicit one is not.
func NewGeneral(envFile string) (*General, error) {

	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	g := General{
		RpcEndpoint: os.Getenv("RPC_ENDPOINT"),
		Chain:       assets.CeloMainnet,
		Host:        getenv("PGSQL_HOST", "localhost"),
		Port:        getenv("PGSQL_PORT", "5432"),
		User:        os.Getenv("PGSQL_USER"),
		Password:    os.Getenv("PGSQL_PASSWORD"),
		DBName:      os.Getenv("PGSQL_DBNAME"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	if raw := os.Getenv("CHAIN_ID"); raw != "" {
		chainID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHAIN_ID: %w", err)
		}
		g.Chain = chainID
	}

	for _, raw := range strings.Split(os.Getenv("PRICE_TOKENS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("PRICE_TOKENS: invalid address %q", raw)
		}
		g.PriceTokens = append(g.PriceTokens, common.HexToAddress(raw))
	}

	return &g, nil
}

// ChainID makes General the router session. Chain 0 means no active network.
func (g *General) ChainID() (uint64, bool) {
	return g.Chain, g.Chain != 0
}

// DatabaseEnabled reports whether enough credentials are set to open Postgres.
func (g *General) DatabaseEnabled() bool {
	return g.User != "" && g.DBName != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
