package agent

import (
	"fmt"
	"net/url"
	"strings"

	"mbt_agent/pkg/models"
)

const svrPrefix = "/MbtSvr/"

// ReportPage 服务器上的报表页面
type ReportPage string

const (
	ModelGraph    ReportPage = "/MbtSvr/GraphModel.html?type=ModelGraph"
	TestCaseGraph ReportPage = "/MbtSvr/GraphSequence.html?type=SequenceGraph"
	TestCaseMSC   ReportPage = "/MbtSvr/GraphTravMsgSeqChart.html?type=travMSC"
	CoverageGraph ReportPage = "/MbtSvr/GraphCoverage.html?type=CoverageGraph"
	ExecStatList  ReportPage = "/MbtSvr/app=webrpt&name=Model%20Stats%20List"
)

// ReportPages 所有报表页面，按名称索引
var ReportPages = map[string]ReportPage{
	"model_graph":     ModelGraph,
	"test_case_graph": TestCaseGraph,
	"test_case_msc":   TestCaseMSC,
	"coverage_graph":  CoverageGraph,
	"exec_stat_list":  ExecStatList,
}

// param 一个已编码的查询参数
type param struct {
	key, value string
}

func p(key, value string) param {
	return param{key: key, value: value}
}

// componentEscaper 把 QueryEscape 的结果调整为 encodeURIComponent 的编码：
// 空格编码为 %20，!'()* 保持原样
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent 编码放在路径中的参数值
func EncodeComponent(v string) string {
	return componentEscaper.Replace(url.QueryEscape(v))
}

// endpoint 拼接服务器请求地址，参数保持给定顺序并逐个编码
func endpoint(svrURL string, params ...param) string {
	parts := make([]string, 0, len(params))
	for _, kv := range params {
		parts = append(parts, kv.key+"="+EncodeComponent(kv.value))
	}
	return strings.TrimRight(svrURL, "/") + svrPrefix + strings.Join(parts, "&")
}

func execURL(req *models.ExecutionRequest) string {
	return endpoint(req.SvrURL,
		p("app", "client"),
		p("action", "exec"),
		p("async", "true"),
		p("autoClose", "false"),
		p("model", req.ModelName),
		p("statDesc", req.StatDesc),
	)
}

func modelActionURL(req *models.ExecutionRequest, action string) string {
	return endpoint(req.SvrURL,
		p("app", "client"),
		p("action", action),
		p("model", req.ModelName),
	)
}

func summaryURL(svrURL string) string {
	return endpoint(svrURL, p("app", "client"), p("action", "summary"))
}

func regAgentURL(req *models.ExecutionRequest) string {
	return endpoint(req.SvrURL,
		p("app", "agentsvc"),
		p("action", "regAgent"),
		p("mbtFile", req.ModelName),
	)
}

func nextCmdURL(svrURL, agentID string, last models.RemoteCommand) string {
	return endpoint(svrURL,
		p("app", "agentsvc"),
		p("action", "nextCmd"),
		p("agentID", agentID),
		p("status", string(last.Status)),
		p("result", last.Result),
	)
}

// ParseEndpoint 解析请求地址中 /MbtSvr/ 之后的参数
func ParseEndpoint(rawURL string) (url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	path := u.EscapedPath()
	i := strings.Index(path, svrPrefix)
	if i < 0 {
		return nil, fmt.Errorf("not a server endpoint: %s", rawURL)
	}
	return url.ParseQuery(path[i+len(svrPrefix):])
}

// ReportURL 返回报表页面完整地址
func ReportURL(svrURL string, page ReportPage) string {
	return strings.TrimRight(svrURL, "/") + string(page)
}
