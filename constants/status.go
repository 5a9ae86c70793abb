package constants

// DocumentStatus is the persisted completeness state of a metadata record.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentStatusComplete   DocumentStatus = "COMPLETE"   // confidence index reached the threshold
	DocumentStatusIncomplete DocumentStatus = "INCOMPLETE" // still missing title or date evidence
)

// StatusFor maps a sufficiency check onto a DocumentStatus.
func StatusFor(sufficient bool) DocumentStatus {
	if sufficient {
		return DocumentStatusComplete
	}
	return DocumentStatusIncomplete
}
