package rtms

import "time"

// OperatorRecord is a single operator's production fact for a reporting
// window, as returned by the RTMS backend. Records are immutable once read.
type OperatorRecord struct {
	EmployeeCode string  `json:"emp_code"`
	EmployeeName string  `json:"emp_name"`
	UnitCode     string  `json:"unit_code"`
	FloorName    string  `json:"floor_name"`
	LineName     string  `json:"line_name"`
	Operation    string  `json:"operation"`
	OperationSeq string  `json:"new_oper_seq"`
	Efficiency   float64 `json:"efficiency"`
	Production   int     `json:"production"`
	Target       int     `json:"target"`
	Timestamp    string  `json:"tran_date"`
}

// Query scopes a production-data request. Zero-value fields are omitted from
// the request, widening the scope.
type Query struct {
	UnitCode  string
	FloorName string
	LineName  string
	Operation string
	StartDate string
	EndDate   string
	Limit     int
}

// AnalyzeResponse is the payload of GET /api/rtms/analyze.
type AnalyzeResponse struct {
	OverallEfficiency float64          `json:"overall_efficiency"`
	TotalProduction   int              `json:"total_production"`
	TotalTarget       int              `json:"total_target"`
	Operators         []OperatorRecord `json:"operators"`
	RecordsAnalyzed   int              `json:"records_analyzed"`
	AnalysisTimestamp string           `json:"analysis_timestamp"`
}

// Alert is the wire form of an alert row from GET /api/rtms/alerts.
type Alert struct {
	ID               string    `json:"id"`
	EmployeeCode     string    `json:"emp_code"`
	EmployeeName     string    `json:"emp_name"`
	UnitCode         string    `json:"unit_code"`
	FloorName        string    `json:"floor_name"`
	LineName         string    `json:"line_name"`
	Operation        string    `json:"operation"`
	Efficiency       float64   `json:"efficiency"`
	TargetEfficiency float64   `json:"target_efficiency"`
	Priority         string    `json:"priority"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}

// listEnvelope wraps the backend's filter-option responses.
type listEnvelope struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
	Count  int      `json:"count"`
}

type analyzeEnvelope struct {
	Status string          `json:"status"`
	Data   AnalyzeResponse `json:"data"`
}

type alertsEnvelope struct {
	Status string  `json:"status"`
	Data   []Alert `json:"data"`
}
