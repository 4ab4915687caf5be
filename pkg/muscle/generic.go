package muscle

import "github.com/gregLibert/musclecard/pkg/iso7816"

// GenericClassifier maps status words that are not specific to the applet.
// It reports false for codes it does not know.
type GenericClassifier func(sw iso7816.StatusWord) (ErrorKind, bool)

// ISOClassifier is the default GenericClassifier, built on the interindustry
// status words of ISO 7816-4.
func ISOClassifier(sw iso7816.StatusWord) (ErrorKind, bool) {
	if sw.IsCounter() {
		return KindPinIncorrect, true
	}

	switch sw {
	case iso7816.SW_ERR_FILE_NOT_FOUND, iso7816.SW_ERR_REF_DATA_NOT_FOUND, iso7816.SW_ERR_RECORD_NOT_FOUND:
		return KindFileNotFound, true
	case iso7816.SW_ERR_FILE_ALREADY_EXISTS:
		return KindFileAlreadyExists, true
	case iso7816.SW_ERR_AUTH_METHOD_BLOCKED:
		return KindAuthMethodBlocked, true
	case iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO,
		iso7816.SW_ERR_CMD_INCOMPATIBLE_FILE,
		iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT,
		iso7816.SW_ERR_COND_OF_USE_NOT_SAT,
		iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_EF:
		return KindNotAllowed, true
	case iso7816.SW_ERR_MEMORY_FAILURE, iso7816.SW_ERR_NOT_ENOUGH_MEMORY:
		return KindMemoryFailure, true
	case iso7816.SW_ERR_WRONG_LENGTH,
		iso7816.SW_ERR_WRONG_PARAMS_NO_INFO,
		iso7816.SW_ERR_INCORRECT_PARAMS_DATA,
		iso7816.SW_ERR_INCORRECT_PARAMS_P1P2,
		iso7816.SW_ERR_WRONG_P1P2:
		return KindInvalidArguments, true
	}
	return 0, false
}
