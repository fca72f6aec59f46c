package cdp

import (
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
)

func TestSelectTarget(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "own", Type: "page", URL: "about:blank"},
		{TargetID: "sw", Type: "service_worker", URL: "https://www.youtube.com/sw.js"},
		{TargetID: "news", Type: "page", URL: "https://news.example.com"},
		{TargetID: "yt", Type: "page", URL: "https://www.youtube.com/watch?v=abc"},
		nil,
	}

	got := selectTarget(infos, "youtube.com/watch", "own")
	if assert.NotNil(t, got) {
		assert.Equal(t, target.ID("yt"), got.TargetID)
	}
	assert.Nil(t, selectTarget(infos, "vimeo.com", "own"))
	assert.Nil(t, selectTarget(infos, "", "own"), "empty match selects nothing")
	assert.Nil(t, selectTarget(infos, "about:blank", "own"), "own target is skipped")
}
