package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikka/internal/event"
	"tikka/internal/raffle"
)

type cli struct {
	t       *testing.T
	envFile string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	t.Setenv("RAFFLE_STORAGE_DRIVER", "sqlite")
	t.Setenv("RAFFLE_STORAGE_PATH", filepath.Join(dir, "raffle.db"))
	t.Setenv("RAFFLE_LOG_CONSOLE", "false")
	return &cli{t: t, envFile: filepath.Join(dir, "missing.env")}
}

func (c *cli) run(args ...string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--env-file", c.envFile}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (c *cli) ok(target any, args ...string) {
	c.t.Helper()
	stdout, stderr, code := c.run(args...)
	require.Equal(c.t, 0, code, "raffle %s: %s", strings.Join(args, " "), stderr)
	if target != nil {
		require.NoError(c.t, json.Unmarshal([]byte(stdout), target), stdout)
	}
}

func (c *cli) fails(kind string, args ...string) {
	c.t.Helper()
	_, stderr, code := c.run(args...)
	assert.Equal(c.t, 1, code)
	assert.True(c.t, strings.HasPrefix(stderr, kind+": "), stderr)
}

func TestRaffleLifecycle(t *testing.T) {
	c := newCLI(t)

	var platform raffle.Platform
	c.ok(&platform, "init", "--admin", "admin", "--fee-bp", "1000")
	assert.True(t, platform.Initialized)
	assert.Equal(t, uint32(1000), platform.FeeBP)

	c.ok(nil, "mint", "--token", "usd", "--to", "alice", "--amount", "100")
	c.ok(nil, "mint", "--token", "usd", "--to", "bob", "--amount", "10")
	c.ok(nil, "mint", "--token", "usd", "--to", "carol", "--amount", "10")

	var created map[string]uint64
	c.ok(&created, "create", "--creator", "alice", "--max-tickets", "2",
		"--ticket-price", "10", "--token", "usd", "--prize", "100", "--description", "a bicycle")
	assert.Equal(t, uint64(1), created["raffle_id"])

	var r raffle.Raffle
	c.ok(&r, "deposit", "1", "--creator", "alice")
	assert.Equal(t, raffle.StatusActive, r.Status)

	var bought map[string][]uint32
	c.ok(&bought, "buy", "1", "--buyer", "bob")
	assert.Equal(t, []uint32{1}, bought["ticket_ids"])
	c.ok(&bought, "buy", "1", "--buyer", "carol")
	assert.Equal(t, []uint32{2}, bought["ticket_ids"])
	c.fails("sold_out", "buy", "1", "--buyer", "dave")

	var holders []string
	c.ok(&holders, "tickets", "1")
	assert.Equal(t, []string{"bob", "carol"}, holders)

	var drawn map[string]*string
	c.ok(&drawn, "finalize", "1", "--caller", "dave")
	require.NotNil(t, drawn["winner"])
	winner := *drawn["winner"]
	assert.Contains(t, []string{"bob", "carol"}, winner)

	var amounts map[string]string
	c.ok(&amounts, "claim", "1", "--winner", winner)
	assert.Equal(t, "90", amounts["net_amount"])
	c.ok(&amounts, "withdraw-proceeds", "1", "--creator", "alice")
	assert.Equal(t, "20", amounts["amount"])

	var report raffle.AuditReport
	c.ok(&report, "audit", "--token", "usd")
	assert.True(t, report.Balanced)
	assert.Equal(t, "10", report.Accrued.String())

	c.ok(&amounts, "withdraw-fees", "--admin", "admin", "--token", "usd", "--recipient", "admin")
	assert.Equal(t, "10", amounts["amount"])
	var balance map[string]string
	c.ok(&balance, "balance", "--token", "usd", "--account", "admin")
	assert.Equal(t, "10", balance["balance"])

	c.ok(&r, "get", "1")
	assert.Equal(t, raffle.StatusClaimed, r.Status)
	assert.True(t, r.ProceedsWithdrawn)

	var records []event.Record
	c.ok(&records, "events", "--limit", "0")
	require.NotEmpty(t, records)
	assert.Equal(t, "admin_transfer_accepted", records[0].Topic.Name)
	assert.Equal(t, "fees_withdrawn", records[len(records)-1].Topic.Name)

	var raffles []*raffle.Raffle
	c.ok(&raffles, "list")
	assert.Len(t, raffles, 1)
}

func TestCancelAndRefund(t *testing.T) {
	c := newCLI(t)
	c.ok(nil, "mint", "--token", "usd", "--to", "alice", "--amount", "100")
	c.ok(nil, "mint", "--token", "usd", "--to", "bob", "--amount", "30")
	c.ok(nil, "create", "--creator", "alice", "--max-tickets", "5", "--allow-multiple",
		"--ticket-price", "10", "--token", "usd", "--prize", "100")
	c.ok(nil, "deposit", "1", "--creator", "alice")
	c.ok(nil, "buy", "1", "--buyer", "bob", "--quantity", "3")

	c.fails("unauthorized", "cancel", "1", "--creator", "bob")

	var r raffle.Raffle
	c.ok(&r, "cancel", "1", "--creator", "alice", "--reason", "venue closed")
	assert.Equal(t, raffle.StatusCancelled, r.Status)

	var refunded map[string][]uint32
	c.ok(&refunded, "refund", "1", "--buyer", "bob")
	assert.Equal(t, []uint32{1, 2, 3}, refunded["ticket_ids"])
	c.fails("already_processed", "refund", "1", "--buyer", "bob")

	var balance map[string]string
	c.ok(&balance, "balance", "--token", "usd", "--account", "bob")
	assert.Equal(t, "30", balance["balance"])
}

func TestExternalRandomness(t *testing.T) {
	c := newCLI(t)
	c.ok(nil, "init", "--admin", "admin", "--oracle", "oracle")
	c.ok(nil, "mint", "--token", "usd", "--to", "alice", "--amount", "100")
	c.ok(nil, "mint", "--token", "usd", "--to", "bob", "--amount", "10")
	c.ok(nil, "create", "--creator", "alice", "--max-tickets", "1", "--randomness", "external",
		"--ticket-price", "10", "--token", "usd", "--prize", "100")
	c.ok(nil, "deposit", "1", "--creator", "alice")
	c.ok(nil, "buy", "1", "--buyer", "bob")

	var drawn map[string]*string
	c.ok(&drawn, "finalize", "1", "--caller", "bob")
	assert.Nil(t, drawn["winner"])

	c.fails("unauthorized", "provide-randomness", "1", "--oracle", "mallory", "--seed", "9")

	var answered map[string]string
	c.ok(&answered, "provide-randomness", "1", "--oracle", "oracle", "--seed", "9")
	assert.Equal(t, "bob", answered["winner"])
}

func TestErrors(t *testing.T) {
	c := newCLI(t)
	c.fails("not_found", "get", "99")
	c.fails("invalid_parameters", "get", "one")
	c.fails("not_initialized", "pause", "--admin", "admin")
	c.fails("invalid_parameters", "balance", "--token", "usd", "--account", "two words")

	_, stderr, code := c.run("create", "--creator", "alice")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "required flag")
}
