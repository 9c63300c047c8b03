package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/RestinGreen/stable-pricer/pkg/general"
	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrConnectTimeout = errors.New("pgsql server connection timeout")
	ErrBadReserve     = errors.New("stored reserve is not an integer")
)

// Database persists pair snapshots so a restart can price before the chain
// has been read again.
type Database struct {
	db  *sql.DB
	log *zap.Logger
}

const (
	connectTimeout = 30 * time.Second
	pingInterval   = 2 * time.Second
)

// NewDB opens the connection and waits for the server to accept pings.
func NewDB(ctx context.Context, gen *general.General, log *zap.Logger) (*Database, error) {

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", gen.Host, gen.Port, gen.User, gen.Password, gen.DBName)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	d := NewFromConn(db, log)
	if err := d.waitForServer(ctx, connectTimeout, pingInterval); err != nil {
		db.Close()
		return nil, err
	}
	d.log.Info("connected to postgres database", zap.String("host", gen.Host), zap.String("db", gen.DBName))
	return d, nil
}

func NewFromConn(db *sql.DB, log *zap.Logger) *Database {
	return &Database{db: db, log: logger.OrNop(log)}
}

func (d *Database) waitForServer(ctx context.Context, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := d.db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
		}
		d.log.Info("waiting for pgsql server to start", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (d *Database) Close() error {
	return d.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id SERIAL PRIMARY KEY,
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		decimal SMALLINT NOT NULL,
		UNIQUE (chain_id, address)
	)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		id SERIAL PRIMARY KEY,
		chain_id BIGINT NOT NULL,
		pair_address TEXT NOT NULL,
		token0_id INTEGER NOT NULL REFERENCES tokens (id),
		token1_id INTEGER NOT NULL REFERENCES tokens (id),
		reserve0 NUMERIC(78, 0) NOT NULL,
		reserve1 NUMERIC(78, 0) NOT NULL,
		last_updated BIGINT NOT NULL,
		UNIQUE (chain_id, token0_id, token1_id)
	)`,
}

func (d *Database) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SavePair upserts both tokens and the pair in one transaction.
func (d *Database) SavePair(ctx context.Context, pair *types.Pair) (err error) {

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	token0ID, err := upsertToken(ctx, tx, pair.Token0)
	if err != nil {
		return err
	}
	token1ID, err := upsertToken(ctx, tx, pair.Token1)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pairs (chain_id, pair_address, token0_id, token1_id, reserve0, reserve1, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, token0_id, token1_id) DO UPDATE
		SET pair_address = EXCLUDED.pair_address,
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			last_updated = EXCLUDED.last_updated`,
		pair.Token0.ChainID,
		pair.PairAddress.Hex(),
		token0ID,
		token1ID,
		reserveString(pair.Reserve0),
		reserveString(pair.Reserve1),
		pair.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("save pair %s: %w", pair.PairAddress.Hex(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pair %s: %w", pair.PairAddress.Hex(), err)
	}
	return nil
}

func upsertToken(ctx context.Context, tx *sql.Tx, token *types.Token) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tokens (chain_id, address, symbol, name, decimal)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, address) DO UPDATE SET id = tokens.id
		RETURNING id`,
		token.ChainID, token.Address.Hex(), token.Symbol, token.Name, token.Decimals,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save token %s: %w", token.Address.Hex(), err)
	}
	return id, nil
}

const pairColumns = `
	SELECT p.pair_address, p.reserve0, p.reserve1, p.last_updated,
		t0.address, t0.symbol, t0.name, t0.decimal,
		t1.address, t1.symbol, t1.name, t1.decimal
	FROM pairs p
	JOIN tokens t0 ON t0.id = p.token0_id
	JOIN tokens t1 ON t1.id = p.token1_id`

// LoadPairs returns every stored pair of a network.
func (d *Database) LoadPairs(ctx context.Context, chainID uint64) ([]*types.Pair, error) {

	rows, err := d.db.QueryContext(ctx, pairColumns+` WHERE p.chain_id = $1`, chainID)
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*types.Pair
	for rows.Next() {
		pair, err := scanPair(rows, chainID)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	d.log.Info("pairs loaded from database", zap.Uint64("chain", chainID), zap.Int("pairs", len(pairs)))
	return pairs, nil
}

// GetPairs answers a router lookup from the stored snapshot.
func (d *Database) GetPairs(ctx context.Context, request []types.TokenPair) ([]*types.Pair, error) {

	out := make([]*types.Pair, len(request))
	for i, tp := range request {
		if tp.Degenerate() {
			continue
		}
		token0, token1 := tp.Sorted()
		row := d.db.QueryRowContext(ctx,
			pairColumns+` WHERE p.chain_id = $1 AND t0.address = $2 AND t1.address = $3`,
			token0.ChainID, token0.Address.Hex(), token1.Address.Hex(),
		)
		pair, err := scanPair(row, token0.ChainID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = pair
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPair(row scanner, chainID uint64) (*types.Pair, error) {

	var pairAddress, reserve0, reserve1 string
	var token0Address, token0Symbol, token0Name string
	var token1Address, token1Symbol, token1Name string
	var token0Decimal, token1Decimal uint8
	var lastUpdated int64
	err := row.Scan(
		&pairAddress, &reserve0, &reserve1, &lastUpdated,
		&token0Address, &token0Symbol, &token0Name, &token0Decimal,
		&token1Address, &token1Symbol, &token1Name, &token1Decimal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan pair: %w", err)
	}

	r0, ok := new(big.Int).SetString(reserve0, 10)
	if !ok {
		return nil, fmt.Errorf("pair %s reserve0 %q: %w", pairAddress, reserve0, ErrBadReserve)
	}
	r1, ok := new(big.Int).SetString(reserve1, 10)
	if !ok {
		return nil, fmt.Errorf("pair %s reserve1 %q: %w", pairAddress, reserve1, ErrBadReserve)
	}

	return &types.Pair{
		PairAddress: common.HexToAddress(pairAddress),
		Token0:      types.NewToken(chainID, common.HexToAddress(token0Address), token0Decimal, token0Symbol, token0Name),
		Token1:      types.NewToken(chainID, common.HexToAddress(token1Address), token1Decimal, token1Symbol, token1Name),
		Reserve0:    r0,
		Reserve1:    r1,
		LastUpdated: lastUpdated,
	}, nil
}

func reserveString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
