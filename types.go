package bindery

import (
	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/typemap"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=), identical to the internal types at compile time.

type Database = db.Database
type NativeItem = db.NativeItem
type NativeItemID = db.NativeItemID
type FfiItem = db.FfiItem
type FfiItemID = db.FfiItemID
type SurfaceItem = db.SurfaceItem
type Environment = db.Environment
type Counters = db.Counters
type CheckEntry = db.CheckEntry
type Path = path.Path
type Type = typemap.Type
type FinalType = typemap.FinalType
