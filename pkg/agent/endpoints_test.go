package agent

import (
	"testing"

	"mbt_agent/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointEncoding(t *testing.T) {
	req := &models.ExecutionRequest{SvrURL: "http://host:8888/", ModelName: "Demo Model", StatDesc: "run&1"}

	u := execURL(req)
	assert.Equal(t, "http://host:8888/MbtSvr/app=client&action=exec&async=true&autoClose=false&model=Demo%20Model&statDesc=run%261", u)

	values, err := ParseEndpoint(u)
	require.NoError(t, err)
	assert.Equal(t, "Demo Model", values.Get("model"))
	assert.Equal(t, "run&1", values.Get("statDesc"))
}

func TestNextCmdURL(t *testing.T) {
	last := models.RemoteCommand{Action: "launchAUT(x)", Status: models.StatusSuccess, Result: "ok"}
	u := nextCmdURL("http://host", "agent 1", last)
	assert.Equal(t, "http://host/MbtSvr/app=agentsvc&action=nextCmd&agentID=agent%201&status=success&result=ok", u)
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "my%20model%20run", EncodeComponent("my model run"))
	assert.Equal(t, "a%2Bb%3D1%26c", EncodeComponent("a+b=1&c"))
	assert.Equal(t, "launchAUT(x)*!'~", EncodeComponent("launchAUT(x)*!'~"))
	assert.Equal(t, "100%25%2F%E4%B8%AD", EncodeComponent("100%/中"))
}

func TestNextCmdURLEncodesResultSpaces(t *testing.T) {
	last := models.RemoteCommand{Action: "click(login)", Status: models.StatusFail, Result: "button not found"}
	u := nextCmdURL("http://host", "agent-1", last)
	assert.Contains(t, u, "result=button%20not%20found")
	assert.NotContains(t, u, "+")

	values, err := ParseEndpoint(u)
	require.NoError(t, err)
	assert.Equal(t, "button not found", values.Get("result"))
}

func TestModelActionURLs(t *testing.T) {
	req := &models.ExecutionRequest{SvrURL: "http://host", ModelName: "Demo"}
	assert.Equal(t, "http://host/MbtSvr/app=client&action=stop&model=Demo", modelActionURL(req, "stop"))
	assert.Equal(t, "http://host/MbtSvr/app=client&action=summary", summaryURL(req.SvrURL))
	assert.Equal(t, "http://host/MbtSvr/app=agentsvc&action=regAgent&mbtFile=Demo", regAgentURL(req))
}

func TestParseEndpointRejectsOtherPaths(t *testing.T) {
	_, err := ParseEndpoint("http://host/other/app=client")
	assert.Error(t, err)
}

func TestReportPages(t *testing.T) {
	assert.Len(t, ReportPages, 5)
	assert.Equal(t, "http://h/MbtSvr/GraphModel.html?type=ModelGraph", ReportURL("http://h", ReportPages["model_graph"]))
}
