package compliance_test

import (
	"sync"
	"testing"

	"github.com/joshyorko/bomforge/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerKeepsWarningsInOrder(t *testing.T) {
	ledger := compliance.NewLedger().Quiet()
	ledger.Record(compliance.MissingVersion, "zlib", "no version for %s", "zlib")
	ledger.Record(compliance.MissingLicense, "zlib", "no license")
	ledger.Record(compliance.MissingVersion, "openssl", "no version")

	require.Equal(t, 3, ledger.Count())
	warnings := ledger.Warnings()
	assert.Equal(t, compliance.Warning{Kind: compliance.MissingVersion, Project: "zlib", Message: "no version for zlib"}, warnings[0])
	assert.Len(t, ledger.Of(compliance.MissingVersion), 2)
	assert.Empty(t, ledger.Of(compliance.MergeFailed))

	tally := ledger.Tally()
	assert.Equal(t, []compliance.KindCount{
		{Kind: compliance.MissingLicense, Count: 1},
		{Kind: compliance.MissingVersion, Count: 2},
	}, tally)
}

func TestLedgerIsSafeForConcurrentUse(t *testing.T) {
	ledger := compliance.NewLedger().Quiet()
	group := sync.WaitGroup{}
	for worker := 0; worker < 8; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			for step := 0; step < 50; step++ {
				ledger.Record(compliance.MissingPurl, "p", "x")
			}
		}()
	}
	group.Wait()
	assert.Equal(t, 400, ledger.Count())
}

func TestWarningsSnapshotIsACopy(t *testing.T) {
	ledger := compliance.NewLedger().Quiet()
	ledger.Record(compliance.MissingImage, "app", "gone")
	snapshot := ledger.Warnings()
	snapshot[0].Project = "changed"
	assert.Equal(t, "app", ledger.Warnings()[0].Project)
}
