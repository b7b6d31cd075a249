package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderRequestID     = "X-Request-ID"
	ContextKeyRequestID = "request_id"
)

// Structs for the API response format

type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	RequestID string    `json:"requestId"`
}

type APIResponse struct {
	Data     interface{} `json:"data"`
	Errors   []string    `json:"errors"`
	Metadata Metadata    `json:"metadata"`
}

// Response functions

func CreateAPIResponse(data interface{}, errors []string, requestID string) APIResponse {
	// If the requestID is blank and not cascading from other functions generate a new one
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if errors == nil {
		errors = []string{}
	}
	return APIResponse{
		Data:   data,
		Errors: errors,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			Version:   "v0",
			RequestID: requestID,
		},
	}
}

func CreateSuccessResponse(data interface{}) APIResponse {
	return CreateAPIResponse(data, nil, "")
}

func CreateErrorResponse(errors []string) APIResponse {
	return CreateAPIResponse(nil, errors, "")
}

// RequestID tags every request with an id, reusing the client's one when sent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// Respond writes data in the success envelope
func Respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, CreateAPIResponse(data, nil, requestID(c)))
}

// RespondBadRequest is for bind and query parsing failures
func RespondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, CreateAPIResponse(nil, []string{err.Error()}, requestID(c)))
}

// RespondError writes err in the error envelope. Internal causes go to the
// log only.
func RespondError(c *gin.Context, logger log.FieldLogger, err error) {
	status := HTTPStatus(err)
	if status >= 500 && logger != nil {
		logger.WithFields(log.Fields{
			"request_id": requestID(c),
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("request failed")
	}
	c.JSON(status, CreateAPIResponse(nil, []string{PublicMessage(err)}, requestID(c)))
}

//This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
//API Copyright (C) 2025 OpenSourceDUTH
//This program is free software: you can redistribute it and/or modify
//it under the terms of the GNU General Public License as published by
//the Free Software Foundation, either version 3 of the License, or
//(at your option) any later version.
//
//This program is distributed in the hope that it will be useful,
//but WITHOUT ANY WARRANTY; without even the implied warranty of
//MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//GNU General Public License for more details.
//
//You should have received a copy of the GNU General Public License
//along with this program.  If not, see <https://www.gnu.org/licenses/>.
