package review

import "encoding/json"

// ServiceName is the fully-qualified name of the remote review service.
const ServiceName = "reviewvault.ReviewService"

// Procedure paths, relative to the service base URL.
const (
	ProcedureGetActiveSession  = "/" + ServiceName + "/GetActiveSession"
	ProcedureStartSession      = "/" + ServiceName + "/StartSession"
	ProcedureSubmitReview      = "/" + ServiceName + "/SubmitReview"
	ProcedureCompleteSession   = "/" + ServiceName + "/CompleteSession"
	ProcedureGetDueCards       = "/" + ServiceName + "/GetDueCards"
	ProcedureGetNewCards       = "/" + ServiceName + "/GetNewCards"
	ProcedureGetDifficultCards = "/" + ServiceName + "/GetDifficultCards"
	ProcedureGetRandomCards    = "/" + ServiceName + "/GetRandomCards"
	ProcedureGetStatistics     = "/" + ServiceName + "/GetStatistics"
	ProcedureGetPreferences    = "/" + ServiceName + "/GetPreferences"
	ProcedureUpdatePreferences = "/" + ServiceName + "/UpdatePreferences"
	ProcedureGetAvailableModes = "/" + ServiceName + "/GetAvailableModes"
	ProcedureSuspendCard       = "/" + ServiceName + "/SuspendCard"
	ProcedureUnsuspendCard     = "/" + ServiceName + "/UnsuspendCard"
	ProcedureResetCard         = "/" + ServiceName + "/ResetCard"
	ProcedureDeleteCard        = "/" + ServiceName + "/DeleteCard"
)

// JSONCodec lets connect carry the plain structs of this package. Both
// the client and the service must be built with it.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
