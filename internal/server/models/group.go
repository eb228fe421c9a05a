package models

// Translation is a localized string pair, one entry per supported Language.
type Translation struct {
	Korean  string
	English string
}

// Group is a node in the directed group hierarchy.
type Group struct {
	Idx         int64
	Name        Translation
	Description Translation
}

// GroupRelation is a hierarchy edge: every member of the subgroup also
// reaches the supergroup.
type GroupRelation struct {
	Idx           int64
	SupergroupIdx int64
	SubgroupIdx   int64
}

// Permission is granted to a user who reaches every group listed in its
// requirement edges.
type Permission struct {
	Idx         int64
	Name        Translation
	Description Translation
}

// PermissionRequirement is a (group, permission) edge. All requirement edges
// of a permission must be satisfied, not any one of them.
type PermissionRequirement struct {
	Idx           int64
	GroupIdx      int64
	PermissionIdx int64
}
