// Package warehouse - tables.go names the queryable tables and their
// column allow-lists.
//
// DESIGN: only the day-partitioned public tables are addressable; their
// unpartitioned twins scan the whole archive on every query and are
// unreachable by construction. Column names are pinned per table so a
// query can never reference anything else, and their spellings match
// the row-validation constructors in models, which read warehouse rows
// by these exact keys.
package warehouse

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gdeltkit/gdelt-go/models"
)

const dataset = "gdelt-bq.gdeltv2"

// table is one queryable warehouse table: its fully qualified name, the
// projection order, and the membership set used to reject stray columns.
type table struct {
	name string
	cols []string
	set  mapset.Set[string]
}

func newTable(name string, cols ...string) table {
	return table{
		name: dataset + "." + name,
		cols: cols,
		set:  mapset.NewSet(cols...),
	}
}

var (
	eventsTable = newTable("events_partitioned",
		"GLOBALEVENTID", "SQLDATE", "MonthYear", "Year", "FractionDate",
		"Actor1Code", "Actor1Name", "Actor1CountryCode", "Actor1KnownGroupCode",
		"Actor1EthnicCode", "Actor1Religion1Code", "Actor1Religion2Code",
		"Actor1Type1Code", "Actor1Type2Code", "Actor1Type3Code",
		"Actor2Code", "Actor2Name", "Actor2CountryCode", "Actor2KnownGroupCode",
		"Actor2EthnicCode", "Actor2Religion1Code", "Actor2Religion2Code",
		"Actor2Type1Code", "Actor2Type2Code", "Actor2Type3Code",
		"IsRootEvent", "EventCode", "EventBaseCode", "EventRootCode", "QuadClass",
		"GoldsteinScale", "NumMentions", "NumSources", "NumArticles", "AvgTone",
		"Actor1Geo_Type", "Actor1Geo_Fullname", "Actor1Geo_CountryCode",
		"Actor1Geo_ADM1Code", "Actor1Geo_ADM2Code", "Actor1Geo_Lat",
		"Actor1Geo_Long", "Actor1Geo_FeatureID",
		"Actor2Geo_Type", "Actor2Geo_Fullname", "Actor2Geo_CountryCode",
		"Actor2Geo_ADM1Code", "Actor2Geo_ADM2Code", "Actor2Geo_Lat",
		"Actor2Geo_Long", "Actor2Geo_FeatureID",
		"ActionGeo_Type", "ActionGeo_Fullname", "ActionGeo_CountryCode",
		"ActionGeo_ADM1Code", "ActionGeo_ADM2Code", "ActionGeo_Lat",
		"ActionGeo_Long", "ActionGeo_FeatureID",
		"DATEADDED", "SOURCEURL",
	)

	mentionsTable = newTable("eventmentions_partitioned",
		"GLOBALEVENTID", "EventTimeDate", "MentionTimeDate", "MentionType",
		"MentionSourceName", "MentionIdentifier", "SentenceID",
		"Actor1CharOffset", "Actor2CharOffset", "ActionCharOffset",
		"InRawText", "Confidence", "MentionDocLen", "MentionDocTone",
		"MentionDocTranslationInfo", "Extras",
	)

	gkgTable = newTable("gkg_partitioned",
		"GKGRECORDID", "DATE", "SourceCollectionIdentifier", "SourceCommonName",
		"DocumentIdentifier", "Counts", "V2Counts", "Themes", "V2Themes",
		"Locations", "V2Locations", "Persons", "V2Persons", "Organizations",
		"V2Organizations", "V2Tone", "Dates", "GCAM", "SharingImage",
		"RelatedImages", "SocialImageEmbeds", "SocialVideoEmbeds", "Quotations",
		"AllNames", "Amounts", "TranslationInfo", "Extras",
	)

	// Web ngrams and the JSON graphs mirror their JSON-lines key names,
	// so warehouse rows validate through the same constructors as file
	// rows without renaming.
	webNGramsTable = newTable("webngrams_partitioned",
		"date", "ngram", "lang", "type", "pos", "pre", "post", "url",
	)

	gqgTable = newTable("gqg_partitioned",
		"date", "url", "lang", "quote", "pre", "post", "offset",
	)
	gegTable = newTable("geg_partitioned",
		"date", "url", "lang", "entities",
	)
	gfgTable = newTable("gfg_partitioned",
		"DATE", "FromFrontPageURL", "LinkID", "LinkPercentMaxID",
		"ToLinkURL", "LinkText",
	)
	gggTable = newTable("ggg_partitioned",
		"date", "url", "lang", "locations",
	)
	gemgTable = newTable("gemg_partitioned",
		"date", "url", "lang", "title", "description", "keywords",
		"authors", "socialImage",
	)
	galTable = newTable("gal_partitioned",
		"date", "url", "lang", "title",
	)
)

var tables = map[models.RecordType]table{
	models.TypeEvents:    eventsTable,
	models.TypeMentions:  mentionsTable,
	models.TypeGKG:       gkgTable,
	models.TypeWebNGrams: webNGramsTable,
	models.TypeGQG:       gqgTable,
	models.TypeGEG:       gegTable,
	models.TypeGFG:       gfgTable,
	models.TypeGGG:       gggTable,
	models.TypeGEMG:      gemgTable,
	models.TypeGAL:       galTable,
}

// TableFor reports the warehouse table backing a record type. VGKG,
// TV-GKG and the broadcast ngrams publish no partitioned tables and are
// file-only.
func TableFor(t models.RecordType) (string, bool) {
	tbl, ok := tables[t]
	return tbl.name, ok
}
