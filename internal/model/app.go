package model

const (
	AppServiceName = "grade_exporter"
	NamespaceName  = "webitel"
	CurrentVersion = "25.04"
)
