package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script-studio/internal/model"
)

func TestRedisMember_LaterInsertSortsFirstOnEqualScore(t *testing.T) {
	// разные JSON, у которых лексикографический порядок противоположен порядку вставки
	members := make([]string, 0, 11)
	for i := 0; i < 11; i++ {
		data, err := json.Marshal(entryAt(fmt.Sprintf("job-%c", 'z'-i), 0))
		require.NoError(t, err)
		members = append(members, encodeMember(int64(i+1), data))
	}

	// ZREVRANGE при равном score отдаёт member в обратном лексикографическом порядке
	sorted := append([]string(nil), members...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	for i, member := range sorted {
		assert.Equal(t, members[len(members)-1-i], member)
	}
}

func TestRedisMember_DecodeRoundTrip(t *testing.T) {
	want := entryAt("job-9", 0)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got model.AuditLogEntry
	require.NoError(t, json.Unmarshal(decodeMember(encodeMember(42, data)), &got))
	assert.Equal(t, want.JobID, got.JobID)

	// записи без номера вставки читаются как есть
	require.NoError(t, json.Unmarshal(decodeMember(string(data)), &got))
	assert.Equal(t, want.JobID, got.JobID)
}
