package constants

// TicketStatus is the review state of an extracted ticket.
type TicketStatus string

// Stable values (the review UI round-trips these exact strings).
const (
	TicketStatusPending  TicketStatus = "pending"  // awaiting human review
	TicketStatusApproved TicketStatus = "approved" // reviewer accepted all fields
	TicketStatusFlagged  TicketStatus = "flagged"  // low confidence or reviewer-flagged
)

// ReviewThreshold is the confidence (0..100) below which a nonzero field
// needs review and a ticket starts out flagged.
const ReviewThreshold = 80

// TicketFieldNames is the fixed set of fields the extraction prompt asks for.
// Order here is also the column order for exports.
var TicketFieldNames = []string{
	"ticketNumber",
	"date",
	"time",
	"materialType",
	"quantity",
	"unit",
	"truckNumber",
	"driverName",
	"haulerName",
	"jobNumber",
	"projectName",
	"customerName",
	"vendorName",
	"plantName",
	"grossWeight",
	"tareWeight",
	"netWeight",
	"pricePerUnit",
	"totalPrice",
	"notes",
}
