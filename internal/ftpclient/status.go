package ftpclient

// FTP reply codes used by the client, from RFC 959 and RFC 2428.
const (
	StatusAlreadyOpen = 125
	StatusAboutToSend = 150

	StatusCommandOK             = 200
	StatusReady                 = 220
	StatusClosing               = 221
	StatusClosingDataConnection = 226
	StatusPassiveMode           = 227
	StatusExtendedPassiveMode   = 229
	StatusLoggedIn              = 230
	StatusRequestedFileActionOK = 250

	StatusUserOK = 331

	StatusNotAvailable       = 421
	StatusTransferAborted    = 426
	StatusInvalidCredentials = 430

	StatusNotLoggedIn     = 530
	StatusFileUnavailable = 550
)

// IsAuthCode reports whether code is a reply that means the credentials
// were refused.
func IsAuthCode(code int) bool {
	return code == StatusNotLoggedIn || code == StatusInvalidCredentials
}
