package database

import (
	"testing"

	modelspkg "marquee/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesLedgerTables(t *testing.T) {
	var hasRecord, hasIntegrityLog bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.RequestRecord:
			hasRecord = true
		case *modelspkg.IntegrityLog:
			hasIntegrityLog = true
		}
	}
	require.True(t, hasRecord, "PersistentModels should include RequestRecord")
	require.True(t, hasIntegrityLog, "PersistentModels should include IntegrityLog")
}
