package ble

// Service and characteristic UUIDs. The service and credential UUIDs match
// the companion app; the list and status UUIDs were randomly generated.
const (
	ServiceUUID = "0000aaaa-ead2-11e7-80c1-9a214cf093ae"

	// credentials, read + write, obfuscated JSON
	CredentialsUUID = "00005555-ead2-11e7-80c1-9a214cf093ae"

	// visible network list, read-only, plain JSON
	ListUUID = "1d338124-7ddc-449e-afc7-67f8673a1160"

	// connection status, notify-only, 2-byte value in {0,1,2}
	StatusUUID = "5b3595c4-ad4f-4e1e-954e-3b290cc02eb0"
)
