package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_015"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
)

// Document Module Error Codes
const (
	ErrCodeDocumentNotFound      ErrorCode = "DOC_001"
	ErrCodeDocumentAlreadyExists ErrorCode = "DOC_002"
	ErrCodeDocumentInvalidState  ErrorCode = "DOC_003"
	ErrCodeDocumentTooLarge      ErrorCode = "DOC_004"
	ErrCodeDocumentNotPDF        ErrorCode = "DOC_005"
	ErrCodeDocumentEmpty         ErrorCode = "DOC_006"
	ErrCodeAnalysisInProgress    ErrorCode = "DOC_007"
	ErrCodeAnalysisNotFound      ErrorCode = "DOC_008"
)

// PDF Extraction Error Codes
const (
	ErrCodePDFOpenFailed     ErrorCode = "PDF_001"
	ErrCodePDFExtractFailed  ErrorCode = "PDF_002"
	ErrCodePDFNoText         ErrorCode = "PDF_003"
	ErrCodePDFPageOutOfRange ErrorCode = "PDF_004"
)

// PII Redaction Error Codes
const (
	ErrCodeRedactionFailed     ErrorCode = "PII_001"
	ErrCodeKeyStoreUnavailable ErrorCode = "PII_002"
	ErrCodeKeyNotFound         ErrorCode = "PII_003"
	ErrCodeDecryptionFailed    ErrorCode = "PII_004"
	ErrCodeEncryptionFailed    ErrorCode = "PII_005"
)

// Chunking Error Codes
const (
	ErrCodeChunkBudgetInvalid ErrorCode = "CHK_001"
	ErrCodeChunkEmptyInput    ErrorCode = "CHK_002"
)

// Legal Search Error Codes
const (
	ErrCodeCorpusLoadFailed  ErrorCode = "LAW_001"
	ErrCodeCorpusEmpty       ErrorCode = "LAW_002"
	ErrCodeEmbeddingFailed   ErrorCode = "LAW_003"
	ErrCodeSearchFailed      ErrorCode = "LAW_004"
	ErrCodeDimensionMismatch ErrorCode = "LAW_005"
)

// Analysis Module Error Codes
const (
	ErrCodeModelNotAvailable  ErrorCode = "ANA_001"
	ErrCodeModelCallFailed    ErrorCode = "ANA_002"
	ErrCodeResponseUnparsable ErrorCode = "ANA_003"
	ErrCodeConsolidateFailed  ErrorCode = "ANA_004"
	ErrCodeMetadataFailed     ErrorCode = "ANA_005"
	ErrCodePipelineFailed     ErrorCode = "ANA_006"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,

	ErrCodeDocumentNotFound:      http.StatusNotFound,
	ErrCodeDocumentAlreadyExists: http.StatusConflict,
	ErrCodeDocumentInvalidState:  http.StatusConflict,
	ErrCodeDocumentTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeDocumentNotPDF:        http.StatusBadRequest,
	ErrCodeDocumentEmpty:         http.StatusBadRequest,
	ErrCodeAnalysisInProgress:    http.StatusConflict,
	ErrCodeAnalysisNotFound:      http.StatusNotFound,

	ErrCodePDFOpenFailed:     http.StatusBadRequest,
	ErrCodePDFExtractFailed:  http.StatusInternalServerError,
	ErrCodePDFNoText:         http.StatusUnprocessableEntity,
	ErrCodePDFPageOutOfRange: http.StatusBadRequest,

	ErrCodeRedactionFailed:     http.StatusInternalServerError,
	ErrCodeKeyStoreUnavailable: http.StatusInternalServerError,
	ErrCodeKeyNotFound:         http.StatusInternalServerError,
	ErrCodeDecryptionFailed:    http.StatusInternalServerError,
	ErrCodeEncryptionFailed:    http.StatusInternalServerError,

	ErrCodeChunkBudgetInvalid: http.StatusBadRequest,
	ErrCodeChunkEmptyInput:    http.StatusBadRequest,

	ErrCodeCorpusLoadFailed:  http.StatusInternalServerError,
	ErrCodeCorpusEmpty:       http.StatusServiceUnavailable,
	ErrCodeEmbeddingFailed:   http.StatusInternalServerError,
	ErrCodeSearchFailed:      http.StatusInternalServerError,
	ErrCodeDimensionMismatch: http.StatusInternalServerError,

	ErrCodeModelNotAvailable:  http.StatusServiceUnavailable,
	ErrCodeModelCallFailed:    http.StatusBadGateway,
	ErrCodeResponseUnparsable: http.StatusInternalServerError,
	ErrCodeConsolidateFailed:  http.StatusInternalServerError,
	ErrCodeMetadataFailed:     http.StatusInternalServerError,
	ErrCodePipelineFailed:     http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",

	ErrCodeDocumentNotFound:      "document not found",
	ErrCodeDocumentAlreadyExists: "document already exists",
	ErrCodeDocumentInvalidState:  "document is in an invalid state for this operation",
	ErrCodeDocumentTooLarge:      "document exceeds size limit",
	ErrCodeDocumentNotPDF:        "only PDF documents are supported",
	ErrCodeDocumentEmpty:         "document contains no content",
	ErrCodeAnalysisInProgress:    "analysis already in progress",
	ErrCodeAnalysisNotFound:      "analysis result not found",

	ErrCodePDFOpenFailed:     "failed to open PDF",
	ErrCodePDFExtractFailed:  "failed to extract text from PDF",
	ErrCodePDFNoText:         "no extractable text in PDF",
	ErrCodePDFPageOutOfRange: "page number out of range",

	ErrCodeRedactionFailed:     "PII redaction failed",
	ErrCodeKeyStoreUnavailable: "encryption key store unavailable",
	ErrCodeKeyNotFound:         "no encryption key for document",
	ErrCodeDecryptionFailed:    "failed to decrypt PII mapping",
	ErrCodeEncryptionFailed:    "failed to encrypt PII mapping",

	ErrCodeChunkBudgetInvalid: "invalid chunk token budget",
	ErrCodeChunkEmptyInput:    "no text to chunk",

	ErrCodeCorpusLoadFailed:  "failed to load statute corpus",
	ErrCodeCorpusEmpty:       "statute corpus is empty",
	ErrCodeEmbeddingFailed:   "failed to embed query",
	ErrCodeSearchFailed:      "statute search failed",
	ErrCodeDimensionMismatch: "embedding dimension mismatch",

	ErrCodeModelNotAvailable:  "language model not available",
	ErrCodeModelCallFailed:    "language model request failed",
	ErrCodeResponseUnparsable: "language model response could not be parsed",
	ErrCodeConsolidateFailed:  "failed to consolidate analysis results",
	ErrCodeMetadataFailed:     "metadata extraction failed",
	ErrCodePipelineFailed:     "analysis pipeline failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
