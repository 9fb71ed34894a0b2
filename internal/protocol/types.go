package protocol

// Result codes carried in every ReturnT envelope.
const (
	CodeSuccess = 200
	CodeFail    = 500
)

// AccessTokenHeader carries the shared secret in both directions.
const AccessTokenHeader = "XXL-JOB-ACCESS-TOKEN"

// RegistryGroupExecutor is the only registry group an executor announces itself in.
const RegistryGroupExecutor = "EXECUTOR"

// ReturnT is the response envelope used by every executor and admin endpoint.
type ReturnT struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg,omitempty"`
	Content any    `json:"content,omitempty"`
}

// OK reports whether the envelope carries the success code.
func (r ReturnT) OK() bool {
	return r.Code == CodeSuccess
}

// Success builds a 200 envelope.
func Success(msg string) ReturnT {
	return ReturnT{Code: CodeSuccess, Msg: msg}
}

// Fail builds a 500 envelope.
func Fail(msg string) ReturnT {
	return ReturnT{Code: CodeFail, Msg: msg}
}

// TriggerParam is the body of POST /run.
type TriggerParam struct {
	JobID                 int64  `json:"jobId"`
	ExecutorHandler       string `json:"executorHandler"`
	ExecutorParams        string `json:"executorParams"`
	ExecutorBlockStrategy string `json:"executorBlockStrategy,omitempty"`
	ExecutorTimeout       int    `json:"executorTimeout"` // seconds, > 0 to take effect
	LogID                 int64  `json:"logId"`
	LogDateTime           int64  `json:"logDateTime"` // unix millis of the schedule
	GlueType              string `json:"glueType,omitempty"`
	BroadcastIndex        int    `json:"broadcastIndex,omitempty"`
	BroadcastTotal        int    `json:"broadcastTotal,omitempty"`
}

// IdleBeatParam is the body of POST /idleBeat.
type IdleBeatParam struct {
	JobID int64 `json:"jobId"`
}

// KillParam is the body of POST /kill.
type KillParam struct {
	JobID int64 `json:"jobId"`
}

// LogParam is the body of POST /log.
// The admin spells the schedule time "logDateTim"; logDateTime is accepted as a fallback.
type LogParam struct {
	LogDateTim  int64 `json:"logDateTim"`
	LogDateTime int64 `json:"logDateTime,omitempty"`
	LogID       int64 `json:"logId"`
	FromLineNum int   `json:"fromLineNum"`
}

// ScheduleTime returns the schedule time in unix millis.
func (p LogParam) ScheduleTime() int64 {
	if p.LogDateTim != 0 {
		return p.LogDateTim
	}
	return p.LogDateTime
}

// LogResult is the content of a successful /log response.
type LogResult struct {
	FromLineNum int    `json:"fromLineNum"`
	ToLineNum   int    `json:"toLineNum"`
	LogContent  string `json:"logContent"`
	IsEnd       bool   `json:"isEnd"`
}

// RegistryParam is the body of /api/registry and /api/registryRemove.
type RegistryParam struct {
	RegistryGroup string `json:"registryGroup"`
	RegistryKey   string `json:"registryKey"`
	RegistryValue string `json:"registryValue"`
}

// HandleCallbackParam is one element of the /api/callback body.
type HandleCallbackParam struct {
	LogID      int64  `json:"logId"`
	LogDateTim int64  `json:"logDateTim"`
	HandleCode int    `json:"handleCode"`
	HandleMsg  string `json:"handleMsg,omitempty"`
}
