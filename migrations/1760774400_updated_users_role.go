package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("_pb_users_auth_")
		if err != nil {
			return err
		}

		// add field
		if err := collection.Fields.AddMarshaledJSON([]byte(`{
			"hidden": false,
			"id": "select2363381545",
			"maxSelect": 1,
			"name": "role",
			"presentable": false,
			"required": false,
			"system": false,
			"type": "select",
			"values": [
				"admin",
				"parent"
			]
		}`)); err != nil {
			return err
		}

		// only superusers may set the role
		collection.CreateRule = types.Pointer("@request.body.role:isset = false")
		collection.UpdateRule = types.Pointer("id = @request.auth.id && @request.body.role:isset = false")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("_pb_users_auth_")
		if err != nil {
			return err
		}

		// remove field
		collection.Fields.RemoveById("select2363381545")

		collection.CreateRule = types.Pointer("")
		collection.UpdateRule = types.Pointer("id = @request.auth.id")

		return app.Save(collection)
	})
}
