package main

import (
	"errors"
	"flag"

	"canteen/internal/env"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	path := flag.String("db", env.GetEnv(env.EnvDBPath, "./internal/databases/canteen.db"), "path to the database file")
	dir := flag.String("migrations", "internal/databases/migrations", "directory holding the migration files")
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	m, err := migrate.New("file://"+*dir, "sqlite3://"+*path+"?_foreign_keys=on")
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal(err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{"db": *path, "version": version, "dirty": dirty}).Info("Database migration complete")
}

/*
This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
API Copyright (C) 2025 OpenSourceDUTH
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
