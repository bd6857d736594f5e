package handler

type CredentialParams struct {
	CredentialID    int64  `json:"credential_id"     param:"credential_id"`
	AccessKeyID     string `json:"access_key_id"`
	Description     string `json:"description"`
	SecretAccessKey string `json:"secret_access_key"`
}

type TargetParams struct {
	TargetID           int64   `json:"target_id"            param:"target_id"`
	TargetCredentialID int64   `json:"target_credential_id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Repository         string  `json:"repository"`
	ManifestPath       string  `json:"manifest_path"`
	AccountID          string  `json:"account_id"`
	Region             string  `json:"region"`
	ServiceUnits       string  `json:"service_units"`
	Schedule           *string `json:"schedule"`
	ScheduleBranch     *string `json:"schedule_branch"`
}

type RunParams struct {
	TargetID int64  `param:"target_id"`
	RunID    int64  `param:"run_id"`
	Branch   string `param:"branch"    json:"branch"`
}

type ListRunsParams struct {
	TargetID int64 `param:"target_id"`
	Page     int64 `                  query:"page"`
}

type APIKeyParams struct {
	ID int64 `param:"id"`
}

type ConfigParams struct {
	RunTimeoutMinutes int64 `json:"run_timeout_minutes"`
	QueueSize         int64 `json:"queue_size"`
}
