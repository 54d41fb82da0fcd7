package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"user_id",
			"type",
			"reference_number",
			"title",
			"body",
			"read",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"user_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"reservation.created",
					"reservation.paid",
					"reservation.confirmed",
					"reservation.rejected",
					"reservation.cancelled",
					"session.started",
					"session.extended",
					"session.ended",
				},
			},

			"reference_number": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 120,
			},

			"body": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"read": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"read_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
