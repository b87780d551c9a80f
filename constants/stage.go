package constants

// Stage is the canonical pipeline stage for a document job.
type Stage string

// Stable values (these exact strings show up in logs and error records).
const (
	StageDownloading Stage = "DOWNLOADING"
	StageOCRCheck    Stage = "OCR_CHECK"
	StageSkipOCR     Stage = "SKIP_OCR"
	StageLocalOCR    Stage = "LOCAL_OCR"
	StageCloudOCR    Stage = "CLOUD_OCR"
	StageTriage      Stage = "TRIAGE"
	StageDetail      Stage = "DETAIL"
	StageNaming      Stage = "NAMING"
	StagePersisting  Stage = "PERSISTING"
	StageSucceeded   Stage = "SUCCEEDED"
	StageFailed      Stage = "FAILED"
)
