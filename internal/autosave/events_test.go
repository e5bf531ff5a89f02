package autosave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
		wantErr bool
	}{
		{name: "flush", payload: "flush", want: FlushEvent{}},
		{name: "flush with newline", payload: "flush\n", want: FlushEvent{}},
		{name: "dirty", payload: "dirty", want: DirtyEvent{}},
		{
			name:    "editor open",
			payload: "nvim:work:0:1:open:/tmp/nvim.sock",
			want:    EditorEvent{Session: "work", Window: 0, Pane: 1, Socket: "/tmp/nvim.sock"},
		},
		{
			name:    "editor leave",
			payload: "nvim:work:2:0:leave:/tmp/nvim.sock",
			want:    EditorEvent{Session: "work", Window: 2, Pane: 0, Leaving: true, Socket: "/tmp/nvim.sock"},
		},
		{
			name:    "socket containing colons",
			payload: "editor:dev:1:1:open:/run/user/1000/nvim.1:0",
			want:    EditorEvent{Session: "dev", Window: 1, Pane: 1, Socket: "/run/user/1000/nvim.1:0"},
		},
		{name: "unknown", payload: "reload", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
		{name: "too few fields", payload: "nvim:work:0:1", wantErr: true},
		{name: "bad window", payload: "nvim:work:x:1:open:/s", wantErr: true},
		{name: "bad pane", payload: "nvim:work:0:y:open:/s", wantErr: true},
		{name: "bad kind", payload: "nvim:work:0:1:sleep:/s", wantErr: true},
		{name: "empty session", payload: "nvim::0:1:open:/s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditorEvent_KeyAndPayload(t *testing.T) {
	ev := EditorEvent{Session: "work", Window: 3, Pane: 2, Leaving: true, Socket: "/tmp/s"}
	assert.Equal(t, "work_3_2", ev.Key())

	parsed, err := ParseEvent(ev.Payload())
	require.NoError(t, err)
	assert.Equal(t, ev, parsed)
}
