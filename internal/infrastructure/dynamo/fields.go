package dynamo

// DynamoDB attribute names used in keys and update expressions.
const (
	fieldAccountID      = "account_id"
	fieldUserID         = "user_id"
	fieldEventID        = "event_id"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldNationalIDHash = "national_id_hash"
	fieldFirstName      = "first_name"
	fieldLastName       = "last_name"
	fieldBirthdate      = "birthdate"
	fieldNationality    = "nationality"
	fieldTimestamp      = "timestamp"
	fieldSubject        = "provider_subject"
)
