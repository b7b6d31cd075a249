package common

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	v0common "canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
)

type StatusResponse struct {
	DatabaseLatency string `json:"database_latency"`
	Database        string `json:"database"`
	Uptime          string `json:"uptime"`
	Timezone        string `json:"timezone"`
}

// Uptime Logic
var startTime time.Time

func uptime() time.Duration {
	return time.Since(startTime)
}

func init() {
	startTime = time.Now()
}

// Handler reports liveness of the API and its database
type Handler struct {
	db  *sql.DB
	loc *time.Location
}

func NewHandler(db *sql.DB, loc *time.Location) *Handler {
	return &Handler{db: db, loc: loc}
}

// Ping Logic
func (h *Handler) ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	err := h.db.PingContext(ctx)
	return time.Since(start), err
}

func (h *Handler) Status(c *gin.Context) {
	latency, err := h.ping(c.Request.Context())
	data := StatusResponse{
		DatabaseLatency: latency.String(),
		Database:        "ok",
		Uptime:          uptime().Truncate(time.Second).String(),
		Timezone:        h.loc.String(),
	}
	if err != nil {
		data.Database = "unreachable"
		v0common.Respond(c, http.StatusServiceUnavailable, data)
		return
	}
	v0common.Respond(c, http.StatusOK, data)
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
