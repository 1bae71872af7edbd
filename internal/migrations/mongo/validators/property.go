package validators

import "go.mongodb.org/mongo-driver/bson"

// PropertyValidator covers only the fields the booking engine reads; listing
// management owns the rest of the document.
var PropertyValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"host_id",
			"price_per_night",
			"max_guests",
			"is_active",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"host_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"price_per_night": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},
			"max_guests": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"is_active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
