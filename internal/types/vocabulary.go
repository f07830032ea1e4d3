// internal/types/vocabulary.go
package types

/*
 * Attribute vocabulary.
 *
 * Closed, versioned list of the normalized event attributes a leaf predicate
 * may reference. Enforced at profile validation time; the runtime path never
 * validates attributes (an event attribute outside the vocabulary is simply
 * never referenced by a compiled matcher).
 *
 * Bump VocabularyVersion whenever a field is added so profile tooling can
 * detect which vocabulary a stored profile was validated against.
 */

// VocabularyVersion identifies the current attribute vocabulary.
const VocabularyVersion = 1

// FieldKind describes the value shape of a vocabulary attribute.
type FieldKind uint8

const (
	FieldNumber FieldKind = iota
	FieldString
	FieldBool
	FieldNumberList
	FieldStringList
)

// IsList reports whether the kind is list-valued.
func (k FieldKind) IsList() bool {
	return k == FieldNumberList || k == FieldStringList
}

// Elem returns the scalar kind of a list kind; scalar kinds return themselves.
func (k FieldKind) Elem() FieldKind {
	switch k {
	case FieldNumberList:
		return FieldNumber
	case FieldStringList:
		return FieldString
	}
	return k
}

// Vocabulary field names, mirroring the ingestion pipeline's normalized view.
const (
	FieldKillmailID           = "killmail_id"
	FieldSystemID             = "system_id"
	FieldConstellationID      = "constellation_id"
	FieldRegionID             = "region_id"
	FieldShipTypeID           = "ship_type_id"
	FieldShipGroupID          = "ship_group_id"
	FieldVictimCharacterID    = "victim_character_id"
	FieldVictimCorporationID  = "victim_corporation_id"
	FieldVictimAllianceID     = "victim_alliance_id"
	FieldVictimFactionID      = "victim_faction_id"
	FieldAttackerCount        = "attacker_count"
	FieldAttackerCharacters   = "attacker_character_ids"
	FieldAttackerCorporations = "attacker_corporation_ids"
	FieldAttackerAlliances    = "attacker_alliance_ids"
	FieldAttackerShipTypes    = "attacker_ship_type_ids"
	FieldFinalBlowShipTypeID  = "final_blow_ship_type_id"
	FieldModuleTags           = "module_tags"
	FieldTotalValue           = "total_value"
	FieldDroppedValue         = "dropped_value"
	FieldDestroyedValue       = "destroyed_value"
	FieldSolo                 = "solo"
	FieldNPC                  = "npc"
)

var vocabulary = map[string]FieldKind{
	FieldKillmailID:           FieldNumber,
	FieldSystemID:             FieldNumber,
	FieldConstellationID:      FieldNumber,
	FieldRegionID:             FieldNumber,
	FieldShipTypeID:           FieldNumber,
	FieldShipGroupID:          FieldNumber,
	FieldVictimCharacterID:    FieldNumber,
	FieldVictimCorporationID:  FieldNumber,
	FieldVictimAllianceID:     FieldNumber,
	FieldVictimFactionID:      FieldNumber,
	FieldAttackerCount:        FieldNumber,
	FieldAttackerCharacters:   FieldNumberList,
	FieldAttackerCorporations: FieldNumberList,
	FieldAttackerAlliances:    FieldNumberList,
	FieldAttackerShipTypes:    FieldNumberList,
	FieldFinalBlowShipTypeID:  FieldNumber,
	FieldModuleTags:           FieldStringList,
	FieldTotalValue:           FieldNumber,
	FieldDroppedValue:         FieldNumber,
	FieldDestroyedValue:       FieldNumber,
	FieldSolo:                 FieldBool,
	FieldNPC:                  FieldBool,
}

// FieldKindOf returns the kind of a vocabulary field and whether it exists.
func FieldKindOf(field string) (FieldKind, bool) {
	k, ok := vocabulary[field]
	return k, ok
}
