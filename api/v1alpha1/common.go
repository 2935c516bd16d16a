package v1alpha1

import "strings"

func StringToMosaicState(s string) MosaicState {
	switch {
	case s == string(MosaicStateProcessing):
		return MosaicStateProcessing
	case s == string(MosaicStateSubmitted):
		return MosaicStateSubmitted
	case s == string(MosaicStateSuccess):
		return MosaicStateSuccess
	case strings.HasPrefix(s, string(MosaicStateError)):
		return MosaicStateError
	default:
		return MosaicStateProcessing
	}
}
