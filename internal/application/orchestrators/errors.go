package orchestrators

import (
	"errors"
	"fmt"
	"strings"

	"gymdesk/internal/application/capture"
	"gymdesk/internal/domain/member"
)

// Workflow errors
var (
	ErrSubmitInFlight   = errors.New("a save is already in progress")
	ErrNothingToEnroll  = errors.New("no staged images to enroll")
	ErrNotPersisted     = errors.New("member has not been saved yet")
	ErrFormNotOpen      = errors.New("no member form is open")
	ErrMemberNotInStore = errors.New("member not found")

	ErrStagedDuringUpload = errors.New("images were staged while the upload ran")
)

// SaveError reports that the member service rejected a create or update.
// No enrollment upload was attempted.
type SaveError struct {
	Op  string // "create" or "update"
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s member: %v", e.Op, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// EnrollmentError reports a failed face upload after the member was saved.
// The record stays committed and the staged images are kept for a retry.
type EnrollmentError struct {
	MemberID int64
	Images   int
	Err      error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enroll member %d (%d images): %v", e.MemberID, e.Images, e.Err)
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// UserMessage turns a workflow error into the text shown to the operator.
// Each failure class gets its own wording so the operator can tell a
// rejected save from a failed enrollment.
func UserMessage(err error) string {
	var (
		verr *member.ValidationError
		serr *SaveError
		eerr *EnrollmentError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Revise los campos marcados: " + strings.Join(fieldNames(verr), ", ")
	case errors.As(err, &serr):
		return "Error al guardar usuario: " + serr.Err.Error()
	case errors.Is(err, ErrStagedDuringUpload):
		return "Usuario guardado con registro facial; las imágenes añadidas durante el envío siguen pendientes, reintente el registro"
	case errors.As(err, &eerr):
		return fmt.Sprintf("Usuario guardado, pero falló el registro facial: %v", eerr.Err)
	case errors.Is(err, ErrSubmitInFlight):
		return "Ya hay un guardado en curso"
	case errors.Is(err, ErrNothingToEnroll):
		return "No hay imágenes para registrar"
	case errors.Is(err, ErrNotPersisted):
		return "Guarde el usuario antes de registrar su rostro"
	case errors.Is(err, ErrFormNotOpen):
		return "El formulario ya no está abierto"
	case errors.Is(err, ErrMemberNotInStore):
		return "El usuario no existe"
	case errors.Is(err, capture.ErrCameraUnavailable):
		return "No se pudo acceder a la cámara"
	case errors.Is(err, capture.ErrCameraNotReady):
		return "La cámara aún no está lista"
	case errors.Is(err, capture.ErrNoCameraSession):
		return "Abra la cámara antes de capturar"
	case errors.Is(err, capture.ErrStagingFull):
		return err.Error()
	case errors.Is(err, capture.ErrIndexOutOfRange):
		return "La imagen ya no está en la lista"
	}
	return "Error inesperado: " + err.Error()
}

func fieldNames(verr *member.ValidationError) []string {
	seen := make(map[string]bool, len(verr.Fields))
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		if !seen[f.Field] {
			seen[f.Field] = true
			names = append(names, f.Field)
		}
	}
	return names
}
