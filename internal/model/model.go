package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table migrated on Postgres (PostGIS available).
var DatabaseModels = []interface{}{
	&JournalInfo{},
	&Session{},
	&Generation{},
	&GenerationPath{},
}

// DatabaseModelsSQLite omits the PostGIS geometry tables.
var DatabaseModelsSQLite = []interface{}{
	&JournalInfo{},
	&Session{},
	&Generation{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// JournalInfo is a single row stamped when a journal database is first created.
type JournalInfo struct {
	gorm.Model
	Application   string `json:"application" gorm:"size:64"`
	SchemaVersion int    `json:"schemaVersion"`
	Units         string `json:"units" gorm:"size:64"`
}

func (*JournalInfo) TableName() string {
	return "journal_infos"
}

////////////////////////
// JOURNAL MODELS
////////////////////////

// Session is one editor run.
type Session struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID        string     `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Mode        string     `json:"mode" gorm:"size:16"`
	SolverAddr  string     `json:"solverAddr" gorm:"size:255"`
	FieldWidth  float64    `json:"fieldWidth"`
	FieldHeight float64    `json:"fieldHeight"`
	Routines    int        `json:"routines"`
	StartTime   time.Time  `json:"startTime" gorm:"index:idx_session_start"`
	EndTime     *time.Time `json:"endTime"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Generation is one solver round trip for one routine revision. Only the shape of the
// request is kept (counts and termini headings), never the edited waypoint list itself.
type Generation struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID      uint           `json:"sessionId" gorm:"index:idx_generation_session_id"`
	Session        Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time           time.Time      `json:"time" gorm:"index:idx_generation_time"`
	Routine        int            `json:"routine" gorm:"index:idx_generation_routine"`
	Revision       uint64         `json:"revision"`
	InteriorPoints int            `json:"interiorPoints"`
	StartHeading   float64        `json:"startHeading"`
	EndHeading     float64        `json:"endHeading"`
	PolylinePoints int            `json:"polylinePoints"`
	Length         float64        `json:"length"`
	DurationMs     float64        `json:"durationMs"`
	Success        bool           `json:"success"`
	Error          string         `json:"error" gorm:"size:2000"`
	Polyline       datatypes.JSON `json:"polyline"`
}

func (*Generation) TableName() string {
	return "generations"
}

// GenerationPath holds the returned polyline as PostGIS geometry for spatial queries.
type GenerationPath struct {
	ID           uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	GenerationID uint            `json:"generationId" gorm:"uniqueIndex:idx_generation_path_generation_id"`
	Generation   Generation      `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:GenerationID;"`
	Start        geom.Point      `json:"start"`
	End          geom.Point      `json:"end"`
	Path         geom.LineString `json:"path"`
}

func (*GenerationPath) TableName() string {
	return "generation_paths"
}
