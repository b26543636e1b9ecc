package handlers

import (
  "errors"
  "io"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/cocoja/cocoja-backend/internal/errordata"
  "github.com/cocoja/cocoja-backend/internal/services"
)

const (
  keyError  = "error"
  keyDetail = "detail"
)

// respondError maps a service error to its status code. messageKey names the
// body field carrying the message ("error" or "detail").
func respondError(c *gin.Context, err error, messageKey string) {
  if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
    ed.SetMessage(err.Error())
  }
  var vErr *services.ValidationError
  switch {
  case errors.As(err, &vErr):
    body := gin.H{}
    for field, msgs := range vErr.Fields() {
      body[field] = msgs
    }
    body[keyDetail] = vErr.Error()
    c.JSON(http.StatusBadRequest, body)
  case errors.Is(err, services.ErrInvalidCredentials):
    c.JSON(http.StatusBadRequest, gin.H{messageKey: "Invalid credentials."})
  case errors.Is(err, services.ErrInvalidInput):
    c.JSON(http.StatusBadRequest, gin.H{messageKey: err.Error()})
  case errors.Is(err, services.ErrNotFound):
    c.JSON(http.StatusNotFound, gin.H{messageKey: "Not found."})
  case errors.Is(err, services.ErrUnauthenticated):
    c.JSON(http.StatusUnauthorized, gin.H{messageKey: "Authentication credentials were not provided or are invalid."})
  case errors.Is(err, services.ErrGenerationFailure):
    c.JSON(http.StatusInternalServerError, gin.H{messageKey: err.Error()})
  default:
    c.JSON(http.StatusInternalServerError, gin.H{messageKey: "internal server error"})
  }
}

func respondBadBody(c *gin.Context, messageKey string) {
  if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
    ed.SetMessage("invalid request body")
  }
  c.JSON(http.StatusBadRequest, gin.H{messageKey: "invalid request body"})
}

// bindOptionalJSON binds the body into req and accepts an empty body.
func bindOptionalJSON(c *gin.Context, req interface{}) error {
  if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
    return err
  }
  return nil
}

// pathID parses the :id parameter. A malformed id cannot match any row, so it
// is answered as not found.
func pathID(c *gin.Context) (uuid.UUID, bool) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    respondError(c, services.ErrNotFound, keyDetail)
    return uuid.Nil, false
  }
  return id, true
}
