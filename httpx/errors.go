package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/leadform/log"
)

// Will log an error with its code, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.WithFields(log.Fields{"code": code}).WithError(err).Error("internal error")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.WithFields(log.Fields{"code": code, "id": id}).Debug("not found")
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.LogFields(level, log.Fields{"code": code, "status": status}, http.StatusText(status))
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.LogFields(level, log.Fields{"code": code, "status": status}, errMsg)
	http.Error(w, errMsg, status)
}

type problems struct {
	Errors []string `json:"errors"`
}

// Will log the problems at debug level, and send an HTTP response with
// status 400 and the list of problems as JSON
func LogValidation(w http.ResponseWriter, r *http.Request, code string, errs []string) {
	log.WithFields(log.Fields{"code": code, "problems": errs}).Debug("invalid request")
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, problems{errs})
}
