package communication

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "axiapac.com/payroll/config"
)

func TestSlackPostsToChannel(t *testing.T) {
	var mu sync.Mutex
	var channels, texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		channels = append(channels, r.FormValue("channel"))
		texts = append(texts, r.FormValue("text"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
	}))
	defer srv.Close()

	n := FromConfig(appconfig.SlackConfig{Token: "xoxb-test", ErrorChannelID: "C-ERR"}, slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, n.Error(context.Background(), "boom"))
	require.NoError(t, n.Info(context.Background(), "no info channel configured"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"C-ERR"}, channels)
	assert.Equal(t, []string{"boom"}, texts)
}

func TestFromConfigDisabled(t *testing.T) {
	n := FromConfig(appconfig.SlackConfig{})
	assert.IsType(t, Discard{}, n)
	assert.NoError(t, n.Error(context.Background(), "ignored"))
}
