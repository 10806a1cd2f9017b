package objectstorage

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/api/apicommon"
	"github.com/investplan/payments-backend/errors"
	"github.com/investplan/payments-backend/metrics"
)

const (
	// uploadFormField is the multipart field carrying the document.
	uploadFormField = "file"
	// multipartOverhead is the room left for boundaries and part headers on
	// top of the file size limit.
	multipartOverhead = 1 << 20
	// sniffLen is how much of the file is read to detect its content type.
	sniffLen = 3072
)

// UploadResponse is returned once a document is stored.
// swagger:model UploadResponse
type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Bucket   string `json:"bucket"`
}

// UploadHandler godoc
//
//	@Summary		Upload a document
//	@Description	Upload a single legal document through a multipart form. The "file" field must carry a file with
//	@Description	one of the allowed extensions. The stored object name is the sanitized original filename.
//	@Tags			storage
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file			true	"Document to upload"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	errors.Error	"Missing file, disallowed type or storage client error"
//	@Failure		413		{object}	errors.Error	"File too large"
//	@Failure		500		{object}	errors.Error	"Storage not configured or storage server error"
//	@Router			/upload [post]
func (osc *Client) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, osc.maxFileSize()+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		osc.observe(metrics.UploadRejected, 0)
		errors.ErrNoFilePart.Write(w)
		return
	}
	part, err := filePart(reader)
	if err != nil {
		osc.observe(metrics.UploadRejected, 0)
		if isBodyTooLarge(err) {
			errors.ErrFileTooLarge.Withf("max size is %d bytes", osc.maxFileSize()).Write(w)
			return
		}
		errors.ErrNoFilePart.Write(w)
		return
	}
	defer func() {
		if err := part.Close(); err != nil {
			log.Warnw("cannot close multipart part", "error", err)
		}
	}()

	filename := part.FileName()
	if filename == "" {
		osc.observe(metrics.UploadRejected, 0)
		errors.ErrNoFileSelected.Write(w)
		return
	}
	if !osc.Allowed(filename) {
		osc.observe(metrics.UploadRejected, 0)
		errors.ErrFileTypeNotAllowed.Withf("Allowed types: %s",
			strings.Join(osc.AllowedExtensions(), ", ")).Write(w)
		return
	}
	if osc == nil {
		osc.observe(metrics.UploadServerError, 0)
		errors.ErrStorageNotConfigured.Write(w)
		return
	}

	// sniff the content type without buffering the whole file
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, io.ErrUnexpectedEOF) {
		osc.observe(metrics.UploadRejected, 0)
		if isBodyTooLarge(err) {
			errors.ErrFileTooLarge.Withf("max size is %d bytes", osc.maxFileSize()).Write(w)
			return
		}
		errors.ErrStorageInvalidObject.Withf("cannot read file: %v", err).Write(w)
		return
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	body := io.MultiReader(bytes.NewReader(head), part)

	res, err := osc.Put(r.Context(), filename, body, contentType)
	if err != nil {
		osc.writePutError(w, filename, err)
		return
	}
	osc.observe(metrics.UploadStored, res.Size)
	log.Infow("document uploaded",
		"filename", res.Key,
		"bucket", res.Bucket,
		"size", res.Size,
		"contentType", contentType)
	apicommon.HTTPWriteJSON(w, &UploadResponse{
		Success:  true,
		Message:  "File uploaded successfully",
		Filename: res.Key,
		Bucket:   res.Bucket,
	})
}

// writePutError maps a Put failure to its HTTP answer.
func (osc *Client) writePutError(w http.ResponseWriter, filename string, err error) {
	var clientErr *ClientError
	var serverErr *ServerError
	switch {
	case stderrors.Is(err, ErrFileTooLarge) || isBodyTooLarge(err):
		osc.observe(metrics.UploadRejected, 0)
		errors.ErrFileTooLarge.Withf("max size is %d bytes", osc.maxFileSize()).Write(w)
	case stderrors.Is(err, ErrInvalidObjectName):
		osc.observe(metrics.UploadRejected, 0)
		errors.ErrStorageInvalidObject.Withf("invalid filename %q", filename).Write(w)
	case stderrors.As(err, &clientErr):
		osc.observe(metrics.UploadClientError, 0)
		errors.ErrStorageClientError.WithData(map[string]string{
			"message": clientErr.Message,
			"cause":   clientErr.Cause,
		}).Write(w)
	case stderrors.As(err, &serverErr):
		osc.observe(metrics.UploadServerError, 0)
		errors.ErrInternalStorageError.WithData(map[string]any{
			"code":       serverErr.Code,
			"request_id": serverErr.RequestID,
			"message":    serverErr.Message,
			"http_code":  serverErr.HTTPStatus,
		}).Write(w)
	default:
		osc.observe(metrics.UploadServerError, 0)
		errors.ErrGenericInternalServerError.WithData(map[string]string{"message": err.Error()}).Write(w)
	}
}

// filePart advances reader to the part of the document field.
func filePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil, fmt.Errorf("no %q field in form", uploadFormField)
			}
			return nil, err
		}
		if part.FormName() == uploadFormField {
			return part, nil
		}
		if err := part.Close(); err != nil {
			return nil, err
		}
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}

func (osc *Client) observe(outcome string, size int64) {
	if osc == nil {
		return
	}
	osc.metrics.ObserveUpload(outcome, size)
}
