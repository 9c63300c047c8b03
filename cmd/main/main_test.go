package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseAddresses(t *testing.T) {
	require := require.New(t)

	moo := common.HexToAddress("0x17700282592D6917F6A73D0bF8AcCf4D578c131e")

	got, err := parseAddresses([]string{moo.Hex()}, nil)
	require.NoError(err)
	require.Equal([]common.Address{moo}, got)

	got, err = parseAddresses(nil, []common.Address{moo})
	require.NoError(err)
	require.Equal([]common.Address{moo}, got)

	_, err = parseAddresses(nil, nil)
	require.ErrorIs(err, errNoTokens)

	_, err = parseAddresses([]string{"moo"}, nil)
	require.Error(err)
}

func TestRootCommands(t *testing.T) {
	require := require.New(t)

	root := rootCmd()
	require.NotNil(root.PersistentFlags().Lookup("env"))

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(names["price"])
	require.True(names["watch"])
	require.True(names["migrate"])
}

func TestNewAppRejectsUnknownChain(t *testing.T) {
	t.Setenv("CHAIN_ID", "1")
	_, err := newApp("")
	require.ErrorContains(t, err, "chain 1")
}
